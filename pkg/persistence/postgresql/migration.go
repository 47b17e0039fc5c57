package postgresql

func migrations() map[int]string {
	return map[int]string{
		1: `
			-- Workflow definitions and their ordered steps
			CREATE TABLE workflows (
				id UUID PRIMARY KEY,
				coach_id VARCHAR(255) NOT NULL,
				name VARCHAR(255) NOT NULL,
				description TEXT NOT NULL DEFAULT '',
				is_active BOOLEAN NOT NULL DEFAULT true,
				created_at TIMESTAMP WITH TIME ZONE NOT NULL,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL,
				deleted_at TIMESTAMP WITH TIME ZONE
			);

			CREATE INDEX idx_workflows_coach_id ON workflows(coach_id);
			CREATE INDEX idx_workflows_deleted_at ON workflows(deleted_at);

			CREATE TABLE workflow_steps (
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				id VARCHAR(255) NOT NULL,
				step_type VARCHAR(50) NOT NULL,
				step_order INT NOT NULL,
				config JSONB NOT NULL DEFAULT '{}',
				PRIMARY KEY (workflow_id, id)
			);

			CREATE UNIQUE INDEX idx_workflow_steps_order ON workflow_steps(workflow_id, step_order);

			-- One execution per (workflow, client) launch
			CREATE TABLE workflow_executions (
				id UUID PRIMARY KEY,
				workflow_id UUID NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
				client_id VARCHAR(255) NOT NULL,
				status VARCHAR(50) NOT NULL CHECK (status IN ('active', 'paused', 'completed', 'cancelled')),
				current_step_id VARCHAR(255),
				started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				step_started_at TIMESTAMP WITH TIME ZONE NOT NULL,
				completed_at TIMESTAMP WITH TIME ZONE,
				updated_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_workflow_executions_status ON workflow_executions(status);
			CREATE INDEX idx_workflow_executions_workflow_id ON workflow_executions(workflow_id);
			CREATE INDEX idx_workflow_executions_client ON workflow_executions(workflow_id, client_id);

			-- Per-(execution, step) firing bookkeeping
			CREATE TABLE step_occurrences (
				execution_id UUID NOT NULL REFERENCES workflow_executions(id) ON DELETE CASCADE,
				step_id VARCHAR(255) NOT NULL,
				fired_count INT NOT NULL DEFAULT 0,
				last_fired_at TIMESTAMP WITH TIME ZONE,
				PRIMARY KEY (execution_id, step_id)
			);
		`,
		2: `
			-- Roster tables are owned by the surrounding platform and only
			-- read here; created when the engine runs standalone.
			CREATE TABLE IF NOT EXISTS clients (
				id VARCHAR(255) PRIMARY KEY,
				coach_id VARCHAR(255) NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_clients_coach_id ON clients(coach_id);

			CREATE TABLE IF NOT EXISTS subscriptions (
				id VARCHAR(255) PRIMARY KEY,
				client_id VARCHAR(255) NOT NULL REFERENCES clients(id) ON DELETE CASCADE,
				package_id VARCHAR(255) NOT NULL,
				ends_at TIMESTAMP WITH TIME ZONE,
				canceled BOOLEAN NOT NULL DEFAULT false
			);

			CREATE INDEX IF NOT EXISTS idx_subscriptions_client_id ON subscriptions(client_id);
			CREATE INDEX IF NOT EXISTS idx_subscriptions_package_id ON subscriptions(package_id);

			CREATE TABLE IF NOT EXISTS form_submissions (
				id VARCHAR(255) PRIMARY KEY,
				client_id VARCHAR(255) NOT NULL,
				form_id VARCHAR(255) NOT NULL,
				submitted_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX IF NOT EXISTS idx_form_submissions_client_form ON form_submissions(client_id, form_id, submitted_at);
		`,
	}
}
