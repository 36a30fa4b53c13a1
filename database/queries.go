package database

// SQL query constants for the run history store.

const (
	InsertRun = `
		INSERT INTO runs (run_id, started_at, key_field)
		VALUES ($1, $2, $3)`

	FinishRun = `
		UPDATE runs
		SET finished_at = $2, record_count = $3
		WHERE run_id = $1`

	// Runs keyed on a different field are not comparable.
	PreviousRun = `
		SELECT run_id
		FROM runs
		WHERE finished_at IS NOT NULL AND key_field = $1
		ORDER BY started_at DESC
		LIMIT 1`

	LatestRun = `
		SELECT run_id, started_at, finished_at, key_field, record_count
		FROM runs
		WHERE finished_at IS NOT NULL
		ORDER BY started_at DESC
		LIMIT 1`

	InsertRecord = `
		INSERT INTO records (run_id, record_key, position, record_type, distinguished_name, snapshot)
		VALUES ($1, $2, $3, $4, $5, $6)`

	RunSnapshots = `
		SELECT record_key, snapshot
		FROM records
		WHERE run_id = $1`

	ListRecords = `
		SELECT record_key, record_type, distinguished_name, snapshot
		FROM records
		WHERE run_id = $1
			AND ($2::text = '' OR record_type = $2::text)
			AND ($3::int IS NULL OR (
				jsonb_typeof(snapshot->'days_to_expire') = 'number'
				AND (snapshot->>'days_to_expire')::int BETWEEN 0 AND $3::int))
		ORDER BY position`

	GetRecord = `
		SELECT record_key, record_type, distinguished_name, snapshot
		FROM records
		WHERE run_id = $1 AND record_key = $2`

	InsertChange = `
		INSERT INTO record_changes (change_id, run_id, record_key, field_name, old_value, new_value)
		VALUES ($1, $2, $3, $4, $5, $6)`

	ListChanges = `
		SELECT c.change_id, c.run_id, r.started_at, c.record_key, c.field_name, c.old_value, c.new_value
		FROM record_changes c
		JOIN runs r ON r.run_id = c.run_id
		WHERE c.record_key = $1 AND r.key_field = $2
		ORDER BY r.started_at DESC, c.field_name`
)
