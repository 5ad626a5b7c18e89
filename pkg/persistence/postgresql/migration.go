package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE workflows (
				id VARCHAR(255) PRIMARY KEY,
				owner_scope VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				lifecycle_state VARCHAR(20) NOT NULL CHECK (lifecycle_state IN ('draft', 'active', 'inactive')),
				trigger_kind VARCHAR(20) NOT NULL CHECK (trigger_kind IN ('manual', 'event', 'scheduled', 'webhook')),
				trigger_config JSONB,
				actions JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				activated_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_owner_scope ON workflows(owner_scope);
			CREATE INDEX idx_workflows_lifecycle_state ON workflows(lifecycle_state);
			CREATE INDEX idx_workflows_created_at ON workflows(created_at);
		`,
		2: `
			-- workflow_id has no foreign key: executions outlive deleted definitions
			CREATE TABLE workflow_executions (
				id VARCHAR(255) PRIMARY KEY,
				workflow_id VARCHAR(255) NOT NULL,
				status VARCHAR(20) NOT NULL CHECK (status IN ('running', 'completed', 'failed')),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				finished_at TIMESTAMP WITH TIME ZONE,
				trigger_context JSONB NOT NULL DEFAULT '{}',
				step_results JSONB NOT NULL DEFAULT '[]',
				error TEXT NOT NULL DEFAULT ''
			);

			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id, started_at DESC);
		`,
	}
}
