package dispatch

const (
	textWelcome      = "Hi %s, thanks for clicking get started!"
	textMustRegister = "You have to register to be able to use this bot's features"
	textMenu         = "What would you like to do?"
	textInfo         = `This bot connects your Messenger account with USOS. Type "login" to link your account or "logout" to unlink it.`
	textUnsupported  = "Sorry, I don't understand that yet."
	textNoText       = "Sorry, I can only read text messages."

	textLogin  = "Click here to log in"
	textLogout = "Click here to log out"

	textAskNickname     = "You don't have a nickname yet. Do you want to set one?"
	textChangeNickname  = "Your nickname is %s. Do you want to change it?"
	textInputNickname   = "Type your new nickname (up to 24 letters, digits or spaces)."
	textInvalidNickname = "A nickname can only have 1 to 24 letters, digits or spaces. Try again."
	textNicknameSet     = "Your nickname is now %s."
	textNicknameKept    = "OK, your nickname stays %s."
	textNoNickname      = "OK, no nickname then."
	textNicknameDeleted = "Your nickname has been removed."

	textAskFeedback       = "Tell me what you think about the bot. Your next message will be sent as feedback."
	textFeedbackDiscarded = "Feedback discarded."
	textFeedbackFiled     = "Thanks! Your feedback was filed as ticket #%s."
	textFeedbackFailed    = "Sorry, your feedback could not be saved. Please try again later."

	textLinked   = "Your USOS account has been linked successfully!"
	textUnlinked = "Your USOS account has been unlinked."

	textBadBroadcast = `Unknown target. Send "help" for usage.`
	textEmptyBody    = "The message is empty."
)
