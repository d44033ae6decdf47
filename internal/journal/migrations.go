package journal

const schema = `
CREATE TABLE IF NOT EXISTS events (
    id TEXT PRIMARY KEY,
    type TEXT NOT NULL,
    trace_id TEXT,
    agent_id TEXT,
    target TEXT,
    success BOOLEAN DEFAULT TRUE,
    payload TEXT,
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_events_trace_id ON events(trace_id);
CREATE INDEX IF NOT EXISTS idx_events_type ON events(type);

CREATE TABLE IF NOT EXISTS executions (
    id TEXT PRIMARY KEY,
    trace_id TEXT NOT NULL,
    request_id TEXT NOT NULL,
    agent_id TEXT,
    branch TEXT,
    commit_sha TEXT,
    success BOOLEAN NOT NULL,
    error TEXT,
    started_at TIMESTAMP,
    finished_at TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_executions_trace_id ON executions(trace_id);
CREATE INDEX IF NOT EXISTS idx_executions_request_id ON executions(request_id);
`
