package journal

type migration struct {
	Version int
	Name    string
	SQL     string
}

// migrations is the ordered list of schema migrations.
var migrations = []migration{
	{
		Version: 1,
		Name:    "create task journal",
		SQL: `
			CREATE TABLE task_events (
				seq          INTEGER PRIMARY KEY AUTOINCREMENT,
				run_id       TEXT NOT NULL DEFAULT '',
				task_id      TEXT NOT NULL,
				kind         TEXT NOT NULL,
				from_agent   TEXT NOT NULL DEFAULT '',
				to_agent     TEXT NOT NULL DEFAULT '',
				in_reply_to  TEXT NOT NULL DEFAULT '',
				state        TEXT NOT NULL,
				content      TEXT NOT NULL DEFAULT '',
				result       TEXT NOT NULL DEFAULT '',
				error        TEXT NOT NULL DEFAULT '',
				at           TEXT NOT NULL
			);

			CREATE INDEX idx_task_events_task ON task_events (task_id, seq);
			CREATE INDEX idx_task_events_run ON task_events (run_id, seq);
		`,
	},
	{
		Version: 2,
		Name:    "index agents",
		SQL: `
			CREATE INDEX idx_task_events_from ON task_events (from_agent);
			CREATE INDEX idx_task_events_to ON task_events (to_agent);
		`,
	},
}
