package bot

// Command constants for Telegram bot commands.
const (
	CommandStart    = "/start"
	CommandProducts = "/produtos"
	// CommandBroadcast sends the rest of the message to every known user.
	CommandBroadcast = "/msg"
)
