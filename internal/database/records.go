package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// batched runs read once per batch of q and concatenates the rows.
func batched[T any](ctx context.Context, q *Query, read func(context.Context, *Query) ([]T, error)) ([]T, error) {
	batches := q.Batches(MaxInValues)
	if len(batches) == 1 {
		return read(ctx, q)
	}

	var out []T
	for _, b := range batches {
		rows, err := read(ctx, b)
		if err != nil {
			return nil, err
		}
		out = append(out, rows...)
	}
	return out, nil
}

// ProfileIDs returns the profile ids q matches, in query order. A query
// split by Batches is ordered per batch.
func (db *DB) ProfileIDs(ctx context.Context, q *Query) ([]string, error) {
	return batched(ctx, q, db.profileIDs)
}

func (db *DB) profileIDs(ctx context.Context, q *Query) ([]string, error) {
	query, args := q.Clone().Select(ColProfileID).Build(db.dialect)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select profile ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Profiles returns full profile rows for q.
func (db *DB) Profiles(ctx context.Context, q *Query) ([]*Profile, error) {
	return batched(ctx, q, db.profiles)
}

func (db *DB) profiles(ctx context.Context, q *Query) ([]*Profile, error) {
	query, args := q.Clone().Select(profileColumns...).Build(db.dialect)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select profiles: %w", err)
	}
	defer rows.Close()

	var profiles []*Profile
	for rows.Next() {
		var p Profile
		if err := rows.Scan(
			&p.ProfileID,
			&p.FirstName,
			&p.MiddleName,
			&p.LastName,
			&p.Age,
			&p.Region,
			&p.Province,
			&p.Municipality,
			&p.Barangay,
			&p.CivilStatus,
			&p.Religion,
			&p.ContactNumber,
			&timeValue{t: &p.CreatedAt},
		); err != nil {
			return nil, err
		}
		profiles = append(profiles, &p)
	}
	return profiles, rows.Err()
}

// HealthRecords returns health rows for q.
func (db *DB) HealthRecords(ctx context.Context, q *Query) ([]*HealthRecord, error) {
	return batched(ctx, q, db.healthRecords)
}

func (db *DB) healthRecords(ctx context.Context, q *Query) ([]*HealthRecord, error) {
	query, args := q.Clone().Select(healthColumns...).Build(db.dialect)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select health records: %w", err)
	}
	defer rows.Close()

	var records []*HealthRecord
	for rows.Next() {
		var r HealthRecord
		if err := rows.Scan(
			&r.ID,
			&r.ProfileID,
			&r.PregnancyStatus,
			&r.NumOfPregnancies,
			&r.StageOfPregnancy,
			&r.MedicalHistory,
			&timeValue{t: &r.CreatedAt},
		); err != nil {
			return nil, err
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// EducationRecords returns education rows for q.
func (db *DB) EducationRecords(ctx context.Context, q *Query) ([]*EducationRecord, error) {
	return batched(ctx, q, db.educationRecords)
}

func (db *DB) educationRecords(ctx context.Context, q *Query) ([]*EducationRecord, error) {
	query, args := q.Clone().Select(educationColumns...).Build(db.dialect)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select education records: %w", err)
	}
	defer rows.Close()

	var records []*EducationRecord
	for rows.Next() {
		var r EducationRecord
		var date time.Time
		dateValue := &timeValue{t: &date}
		if err := rows.Scan(
			&r.ID,
			&r.ProfileID,
			&r.Status,
			&r.Program,
			&r.Institution,
			dateValue,
			&timeValue{t: &r.CreatedAt},
		); err != nil {
			return nil, err
		}
		if dateValue.valid {
			r.EnrollDropoutDate = &date
		}
		records = append(records, &r)
	}
	return records, rows.Err()
}

// CaseRecords returns case rows for q.
func (db *DB) CaseRecords(ctx context.Context, q *Query) ([]*CaseRecord, error) {
	return batched(ctx, q, db.caseRecords)
}

func (db *DB) caseRecords(ctx context.Context, q *Query) ([]*CaseRecord, error) {
	query, args := q.Clone().Select(caseColumns...).Build(db.dialect)

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("select case records: %w", err)
	}
	defer rows.Close()

	var records []*CaseRecord
	for rows.Next() {
		var c CaseRecord
		if err := rows.Scan(
			&c.CaseID,
			&c.ProfileID,
			&c.ReceivedGC,
			&c.GCType,
			&c.GCSource,
			&c.GCFrequency,
			&c.ReceivedFS,
			&c.FSType,
			&c.FSSource,
			&c.FSFrequency,
			&timeValue{t: &c.CreatedAt},
		); err != nil {
			return nil, err
		}
		records = append(records, &c)
	}
	return records, rows.Err()
}

// GetCase retrieves a case by id; nil when it does not exist.
func (db *DB) GetCase(ctx context.Context, caseID int64) (*CaseRecord, error) {
	records, err := db.CaseRecords(ctx, From(TableCaseRecords).Where(ColCaseID, caseID))
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

// InsertProfile inserts a profile.
func (db *DB) InsertProfile(ctx context.Context, p *Profile) error {
	return db.insert(ctx, TableProfiles, profileColumns[:12],
		p.ProfileID, str(p.FirstName), str(p.MiddleName), str(p.LastName), num(p.Age),
		str(p.Region), str(p.Province), str(p.Municipality), str(p.Barangay),
		str(p.CivilStatus), str(p.Religion), str(p.ContactNumber),
	)
}

// InsertHealthRecord inserts a health record and sets its id.
func (db *DB) InsertHealthRecord(ctx context.Context, r *HealthRecord) error {
	return db.insertReturningID(ctx, TableHealthRecords, healthColumns[1:6], &r.ID,
		r.ProfileID, str(r.PregnancyStatus), num(r.NumOfPregnancies), str(r.StageOfPregnancy), str(r.MedicalHistory),
	)
}

// InsertEducationRecord inserts an education record and sets its id.
func (db *DB) InsertEducationRecord(ctx context.Context, r *EducationRecord) error {
	return db.insertReturningID(ctx, TableEducationRecords, educationColumns[1:6], &r.ID,
		r.ProfileID, str(r.Status), str(r.Program), str(r.Institution), dateArg(r.EnrollDropoutDate),
	)
}

// InsertCase inserts a case with its pre-generated id. A duplicate id is
// reported by IsUniqueViolation on the returned error.
func (db *DB) InsertCase(ctx context.Context, c *CaseRecord) error {
	return db.insert(ctx, TableCaseRecords, caseColumns[:10],
		c.CaseID, c.ProfileID,
		c.ReceivedGC, str(c.GCType), str(c.GCSource), str(c.GCFrequency),
		c.ReceivedFS, str(c.FSType), str(c.FSSource), str(c.FSFrequency),
	)
}

// UpdateCase rewrites the service fields of an existing case. It returns
// sql.ErrNoRows when the case does not exist.
func (db *DB) UpdateCase(ctx context.Context, c *CaseRecord) error {
	sets := caseColumns[2:10]
	var sb strings.Builder
	sb.WriteString("UPDATE ")
	sb.WriteString(TableCaseRecords)
	sb.WriteString(" SET ")
	for i, col := range sets {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString(col)
		sb.WriteString(" = ")
		sb.WriteString(db.dialect.Placeholder(i + 1))
	}
	sb.WriteString(" WHERE caseid = ")
	sb.WriteString(db.dialect.Placeholder(len(sets) + 1))

	result, err := db.ExecContext(ctx, sb.String(),
		c.ReceivedGC, str(c.GCType), str(c.GCSource), str(c.GCFrequency),
		c.ReceivedFS, str(c.FSType), str(c.FSSource), str(c.FSFrequency),
		c.CaseID,
	)
	if err != nil {
		return fmt.Errorf("update case %d: %w", c.CaseID, err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (db *DB) insert(ctx context.Context, table string, columns []string, values ...any) error {
	query := db.insertSQL(table, columns)
	if _, err := db.ExecContext(ctx, query, values...); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (db *DB) insertReturningID(ctx context.Context, table string, columns []string, id *int64, values ...any) error {
	query := db.insertSQL(table, columns) + " RETURNING id"
	if err := db.QueryRowContext(ctx, query, values...).Scan(id); err != nil {
		return fmt.Errorf("insert %s: %w", table, err)
	}
	return nil
}

func (db *DB) insertSQL(table string, columns []string) string {
	marks := make([]string, len(columns))
	for i := range columns {
		marks[i] = db.dialect.Placeholder(i + 1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(columns, ", "), strings.Join(marks, ", "))
}

// str and num unwrap optional fields into driver values.
func str(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func num(p *int) any {
	if p == nil {
		return nil
	}
	return int64(*p)
}
