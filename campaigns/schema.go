package campaigns

var dbSchemas = []string{`
CREATE TABLE IF NOT EXISTS campaigns (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	title TEXT,
	channel_id TEXT NOT NULL,
	message_id TEXT NOT NULL,
	emoji TEXT NOT NULL,

	remind_at TIMESTAMP NOT NULL,
	created_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL DEFAULT 'active',

	UNIQUE(channel_id, message_id, emoji)
);
`, `
CREATE TABLE IF NOT EXISTS opt_ins (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id INTEGER NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,

	user_id TEXT NOT NULL,
	username TEXT,
	tallied_at TIMESTAMP NOT NULL,

	UNIQUE(campaign_id, user_id)
);
`, `
CREATE TABLE IF NOT EXISTS reminder_logs (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	campaign_id INTEGER NOT NULL REFERENCES campaigns (id) ON DELETE CASCADE,

	sent_at TIMESTAMP NOT NULL,
	recipient_count INTEGER NOT NULL,
	message_chunks INTEGER NOT NULL,
	success BOOLEAN NOT NULL,
	error_message TEXT
);
`, `
CREATE INDEX IF NOT EXISTS idx_campaigns_status ON campaigns (status);
`, `
CREATE INDEX IF NOT EXISTS idx_campaigns_remind_at ON campaigns (remind_at);
`, `
CREATE INDEX IF NOT EXISTS idx_opt_ins_campaign_id ON opt_ins (campaign_id);
`, `
CREATE INDEX IF NOT EXISTS idx_opt_ins_user_id ON opt_ins (user_id);
`, `
CREATE INDEX IF NOT EXISTS idx_reminder_logs_campaign_id ON reminder_logs (campaign_id);
`}
