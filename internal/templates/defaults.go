package templates

import "github.com/lumewell/companion/internal/models"

// DefaultLibrary returns the built-in pools every character starts from.
// Profile libraries overlay these; selection falls through to them whenever a
// profile pool is empty.
func DefaultLibrary() Library {
	return Library{
		Greetings: map[models.TimeOfDay][]string{
			models.TimeOfDayMorning: {
				"Good morning! Did you sleep well?",
				"Morning! Ready to make today a good one?",
				"Rise and shine! How about some breakfast?",
			},
			models.TimeOfDayAfternoon: {
				"Hey, how's your day going so far?",
				"Afternoon! Remember to take a little break now and then.",
				"Hi there! Have you had some water recently?",
			},
			models.TimeOfDayEvening: {
				"Good evening! How did today treat you?",
				"Evening! Time to start winding down a bit.",
				"Hey! Anything nice happen today?",
			},
			models.TimeOfDayNight: {
				"Still up? Don't stay up too late, okay?",
				"It's getting late. A good night's rest works wonders.",
			},
		},
		Proactive: map[models.TriggerType][]string{
			models.TriggerInactivity: {
				"Haven't heard from you in a while. How have you been?",
				"Just checking in, I was thinking about you. Everything okay?",
				"It's been quiet around here! Want to catch up?",
			},
			models.TriggerActivityAcknowledgment: {
				"I saw you logged something new, nice work staying on top of things!",
				"Great job keeping your log up to date!",
			},
		},
		Responses: map[string][]string{
			"stressed": {
				"That sounds stressful. Want to take a slow breath together?",
				"You've been carrying a lot. Be gentle with yourself today.",
			},
			"sad": {
				"I'm sorry you're feeling down. I'm here if you want to talk.",
				"Rough days happen. You don't have to go through them alone.",
			},
			"anxious": {
				"It's okay to feel anxious. One small step at a time.",
				"Let's slow down for a moment. What's the biggest worry right now?",
			},
			"tired": {
				"You sound worn out. Maybe an early night tonight?",
				"Rest is productive too. Give yourself permission to recharge.",
			},
			"happy": {
				"Love hearing that! What made today so good?",
				"That's wonderful! Let's keep the good streak going.",
			},
		},
		Chart: map[string][]string{
			"weight": {
				"Your weight has been fairly steady lately. Consistency counts!",
				"Small fluctuations are normal. The overall picture matters most.",
			},
			"calories": {
				"Your intake looks balanced over the period. Nice work!",
				"Keeping a regular eating rhythm really helps. Keep logging!",
			},
			"sleep": {
				"Your sleep pattern looks reasonably regular. Rest well tonight!",
				"A steady bedtime makes mornings easier. You're doing fine.",
			},
			"mood": {
				"Your mood entries show ups and downs, which is completely normal.",
				"Thanks for tracking how you feel. It really helps us both.",
			},
			"default": {
				"Things look steady over this period. Keep up the good habits!",
			},
		},
	}
}
