package bot

import "fmt"

const (
	replyStartError    = "There was an error while processing your request. Please try again later."
	replyNoEvents      = "No events found for today"
	replyPostsHeader   = "Here are the social media posts for today"
	replyGenerateError = "There was an error generating the posts. Please try again later."
	replyDeleted       = "All today's events have been deleted."
	replyDeleteError   = "Failed to delete events. Please try again."
	replyEventAdded    = "Event has been added successfully"
	replyEventError    = "There was an error adding your event. Please try again."
	replyWelcomeBack   = "You're welcome!"
	replyStopping      = "Bot is stopping. Goodbye!"
	replyUnknown       = "Sorry, I don't know that command. Send /help to see what I can do."

	replyAbout = "I am a social media bot designed to help you generate engaging posts based on your daily events. Use the commands to interact and make the most out of your social media presence!"

	replyHelp = `Available commands:
/start - Start interacting with the bot
/generate - Generate social media posts from today's events
/time - Show the current server time
/deleteevents - Delete all events for today
/stats - Show the number of events recorded today
/about - Learn more about this bot
/quit - Stop the bot`
)

var (
	thanksPhrases   = map[string]bool{"Thank you": true, "Thanks": true, "Thank you!": true, "Thanks!": true}
	greetingPhrases = map[string]bool{"Hi": true, "Hello": true, "Hey": true}
)

func replyWelcome(firstName string) string {
	return fmt.Sprintf("Hello %s! Welcome. I will be writing highly engaging social media posts for you. Just keep feeding me with the events throughout the day. Let's shine on social media together!", firstName)
}

func replyGenerating(firstName string) string {
	return fmt.Sprintf("Hey %s! I am generating the social media posts for you. Please wait for a moment.", firstName)
}

func replyGreeting(firstName string) string {
	return fmt.Sprintf("Hello %s!", firstName)
}

func replyTime(clock string) string {
	return "Current server time is: " + clock
}

func replyStats(n int64) string {
	return fmt.Sprintf("You have recorded %d event(s) today.", n)
}
