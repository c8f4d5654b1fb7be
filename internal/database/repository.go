package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound is returned when a row does not exist or belongs to
	// another psychologist.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists is returned on a unique constraint violation.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrLinkConsumed is returned when a link already has an answer set.
	ErrLinkConsumed = errors.New("assessment link already consumed")
	// ErrAssessmentExists is returned when a response already has a narrative.
	ErrAssessmentExists = errors.New("assessment already exists for response")
)

const timeLayout = time.RFC3339Nano

const linkColumns = `id, patient_id, token, expires_at, expiry_days, completed_at,
	email_sent_at, last_accessed_at, access_count, ip_address, created_at`

const patientColumns = `id, psychologist_id, name, age, email, phone, notes, created_at, updated_at`

const responseColumns = `id, link_id, patient_id, answers, completed_at, created_at`

const assessmentColumns = `id, response_id, patient_id,
	intellectual_score, emotional_score, imaginative_score, sensory_score, motor_score,
	clinical_analysis, diagnosis, recommendations, confidence_level, giftedness_type,
	marker_version, structured, created_at`

// Repository is the storage client handed to the services. It is built
// once at startup and shared.
type Repository struct {
	db  *DB
	now func() time.Time
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, now: time.Now}
}

// DB exposes the underlying handle for health checks and pool stats.
func (r *Repository) DB() *DB { return r.db }

type scanner interface {
	Scan(dest ...any) error
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse stored time %q: %w", s, err)
	}
	return t, nil
}

func parseNullTime(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return nil, nil
	}
	t, err := parseTime(ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// isUniqueViolation matches the SQLite message shared by both drivers.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// --- psychologists ---

// CreatePsychologist registers a clinician. Emails are unique.
func (r *Repository) CreatePsychologist(ctx context.Context, name, email string) (*Psychologist, error) {
	now := r.now()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO psychologists (name, email, created_at, updated_at) VALUES (?, ?, ?, ?)
	`, name, strings.ToLower(strings.TrimSpace(email)), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("psychologist %s: %w", email, ErrAlreadyExists)
		}
		return nil, fmt.Errorf("failed to create psychologist: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read psychologist id: %w", err)
	}
	return r.GetPsychologist(ctx, id)
}

// GetPsychologist loads a clinician by id
func (r *Repository) GetPsychologist(ctx context.Context, id int64) (*Psychologist, error) {
	var p Psychologist
	var created, updated string
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, email, created_at, updated_at FROM psychologists WHERE id = ?
	`, id).Scan(&p.ID, &p.Name, &p.Email, &created, &updated)
	if err != nil {
		return nil, fmt.Errorf("failed to get psychologist %d: %w", id, notFound(err))
	}
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// --- patients ---

func scanPatient(s scanner) (*Patient, error) {
	var p Patient
	var age sql.NullInt64
	var email, phone, notes sql.NullString
	var created, updated string

	if err := s.Scan(&p.ID, &p.PsychologistID, &p.Name, &age, &email, &phone, &notes, &created, &updated); err != nil {
		return nil, err
	}
	if age.Valid {
		v := int(age.Int64)
		p.Age = &v
	}
	p.Email, p.Phone, p.Notes = email.String, phone.String, notes.String

	var err error
	if p.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	if p.UpdatedAt, err = parseTime(updated); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreatePatient inserts p and fills in its id and timestamps
func (r *Repository) CreatePatient(ctx context.Context, p *Patient) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO patients (psychologist_id, name, age, email, phone, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, p.PsychologistID, p.Name, nullInt(p.Age), nullString(p.Email), nullString(p.Phone), nullString(p.Notes),
		formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}

	if p.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read patient id: %w", err)
	}
	p.CreatedAt, p.UpdatedAt = now, now
	return nil
}

// ListPatients returns the patients of one psychologist, newest first
func (r *Repository) ListPatients(ctx context.Context, psychologistID int64) ([]*Patient, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+patientColumns+` FROM patients WHERE psychologist_id = ? ORDER BY id DESC
	`, psychologistID)
	if err != nil {
		return nil, fmt.Errorf("failed to list patients: %w", err)
	}
	defer rows.Close()

	var out []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan patient: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// GetPatient loads a patient owned by psychologistID. Another clinician's
// patient is reported as ErrNotFound.
func (r *Repository) GetPatient(ctx context.Context, psychologistID, patientID int64) (*Patient, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT `+patientColumns+` FROM patients WHERE id = ? AND psychologist_id = ?
	`, patientID, psychologistID)

	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", patientID, notFound(err))
	}
	return p, nil
}

// PatientByID is unscoped. It serves the public link flow and background
// analysis, never a clinician request.
func (r *Repository) PatientByID(ctx context.Context, patientID int64) (*Patient, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+patientColumns+` FROM patients WHERE id = ?`, patientID)
	p, err := scanPatient(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get patient %d: %w", patientID, notFound(err))
	}
	return p, nil
}

// UpdatePatient overwrites the editable fields of p
func (r *Repository) UpdatePatient(ctx context.Context, p *Patient) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		UPDATE patients SET name = ?, age = ?, email = ?, phone = ?, notes = ?, updated_at = ?
		WHERE id = ? AND psychologist_id = ?
	`, p.Name, nullInt(p.Age), nullString(p.Email), nullString(p.Phone), nullString(p.Notes), formatTime(now),
		p.ID, p.PsychologistID)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to update patient %d: %w", p.ID, ErrNotFound)
	}
	p.UpdatedAt = now
	return nil
}

// DeletePatient removes a patient and, by cascade, its links and results
func (r *Repository) DeletePatient(ctx context.Context, psychologistID, patientID int64) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM patients WHERE id = ? AND psychologist_id = ?
	`, patientID, psychologistID)
	if err != nil {
		return fmt.Errorf("failed to delete patient: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("failed to delete patient %d: %w", patientID, ErrNotFound)
	}
	return nil
}

// --- links ---

func scanLink(s scanner) (*AssessmentLink, error) {
	var l AssessmentLink
	var expires, completed, emailSent, accessed, ip sql.NullString
	var created string

	if err := s.Scan(&l.ID, &l.PatientID, &l.Token, &expires, &l.ExpiryDays, &completed,
		&emailSent, &accessed, &l.AccessCount, &ip, &created); err != nil {
		return nil, err
	}
	l.IPAddress = ip.String

	var err error
	if l.ExpiresAt, err = parseNullTime(expires); err != nil {
		return nil, err
	}
	if l.CompletedAt, err = parseNullTime(completed); err != nil {
		return nil, err
	}
	if l.EmailSentAt, err = parseNullTime(emailSent); err != nil {
		return nil, err
	}
	if l.LastAccessedAt, err = parseNullTime(accessed); err != nil {
		return nil, err
	}
	if l.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &l, nil
}

// TokenExists reports whether token is already assigned to a link
func (r *Repository) TokenExists(ctx context.Context, token string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM assessment_links WHERE token = ?`, token).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check token: %w", err)
	}
	return n > 0, nil
}

// CreateLink inserts l and fills in its id and creation time
func (r *Repository) CreateLink(ctx context.Context, l *AssessmentLink) error {
	now := r.now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO assessment_links (patient_id, token, expires_at, expiry_days, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, l.PatientID, l.Token, nullTime(l.ExpiresAt), l.ExpiryDays, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("link token: %w", ErrAlreadyExists)
		}
		return fmt.Errorf("failed to create link: %w", err)
	}

	if l.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read link id: %w", err)
	}
	l.CreatedAt = now
	return nil
}

// GetLinkByToken is the public lookup used by the respondent flow
func (r *Repository) GetLinkByToken(ctx context.Context, token string) (*AssessmentLink, error) {
	stmt, err := r.db.GetPreparedStatement(stmtLinkByToken)
	if err != nil {
		return nil, err
	}

	l, err := scanLink(stmt.QueryRowContext(ctx, token))
	if err != nil {
		return nil, fmt.Errorf("failed to get link by token: %w", notFound(err))
	}
	return l, nil
}

// GetLink loads a link whose patient belongs to psychologistID
func (r *Repository) GetLink(ctx context.Context, psychologistID, linkID int64) (*AssessmentLink, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT l.id, l.patient_id, l.token, l.expires_at, l.expiry_days, l.completed_at,
			l.email_sent_at, l.last_accessed_at, l.access_count, l.ip_address, l.created_at
		FROM assessment_links l JOIN patients p ON p.id = l.patient_id
		WHERE l.id = ? AND p.psychologist_id = ?
	`, linkID, psychologistID)

	l, err := scanLink(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get link %d: %w", linkID, notFound(err))
	}
	return l, nil
}

// ListLinks returns the links of a patient, newest first
func (r *Repository) ListLinks(ctx context.Context, patientID int64) ([]*AssessmentLink, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+linkColumns+` FROM assessment_links WHERE patient_id = ? ORDER BY id DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list links: %w", err)
	}
	defer rows.Close()

	var out []*AssessmentLink
	for rows.Next() {
		l, err := scanLink(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan link: %w", err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

// RecordAccess bumps the access audit of a link. An empty ip keeps the
// previously recorded address.
func (r *Repository) RecordAccess(ctx context.Context, linkID int64, ip string) error {
	stmt, err := r.db.GetPreparedStatement(stmtRecordAccess)
	if err != nil {
		return err
	}
	if _, err := stmt.ExecContext(ctx, formatTime(r.now()), ip, linkID); err != nil {
		return fmt.Errorf("failed to record link access: %w", err)
	}
	return nil
}

// MarkEmailSent records a successful invitation delivery
func (r *Repository) MarkEmailSent(ctx context.Context, linkID int64, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `UPDATE assessment_links SET email_sent_at = ? WHERE id = ?`, formatTime(at), linkID)
	if err != nil {
		return fmt.Errorf("failed to mark email sent: %w", err)
	}
	return nil
}

// PatientName returns only the name of a link's patient, for the public
// questionnaire page.
func (r *Repository) PatientName(ctx context.Context, patientID int64) (string, error) {
	p, err := r.PatientByID(ctx, patientID)
	if err != nil {
		return "", err
	}
	return p.Name, nil
}

// --- responses ---

func scanResponse(s scanner) (*AssessmentResponse, error) {
	var resp AssessmentResponse
	var answers, completed, created string

	if err := s.Scan(&resp.ID, &resp.LinkID, &resp.PatientID, &answers, &completed, &created); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(answers), &resp.Answers); err != nil {
		return nil, fmt.Errorf("failed to decode stored answers: %w", err)
	}

	var err error
	if resp.CompletedAt, err = parseTime(completed); err != nil {
		return nil, err
	}
	if resp.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ConsumeLink marks the link completed and stores the answers in one
// transaction. Only the first caller for a link succeeds; every later or
// concurrent caller gets ErrLinkConsumed and nothing is written.
func (r *Repository) ConsumeLink(ctx context.Context, link *AssessmentLink, answers []int) (*AssessmentResponse, error) {
	encoded, err := json.Marshal(answers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	consume, err := r.db.GetPreparedStatement(stmtConsumeLink)
	if err != nil {
		return nil, err
	}
	insert, err := r.db.GetPreparedStatement(stmtInsertResponse)
	if err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := r.now().UTC()

	res, err := tx.StmtContext(ctx, consume).ExecContext(ctx, formatTime(now), link.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to mark link completed: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return nil, ErrLinkConsumed
	}

	res, err = tx.StmtContext(ctx, insert).ExecContext(ctx, link.ID, link.PatientID, string(encoded), formatTime(now), formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrLinkConsumed
		}
		return nil, fmt.Errorf("failed to store response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read response id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit submission: %w", err)
	}

	link.CompletedAt = &now
	return &AssessmentResponse{
		ID:          id,
		LinkID:      link.ID,
		PatientID:   link.PatientID,
		Answers:     answers,
		CompletedAt: now,
		CreatedAt:   now,
	}, nil
}

// GetResponse loads an answer set by id
func (r *Repository) GetResponse(ctx context.Context, responseID int64) (*AssessmentResponse, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+responseColumns+` FROM assessment_responses WHERE id = ?`, responseID)
	resp, err := scanResponse(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get response %d: %w", responseID, notFound(err))
	}
	return resp, nil
}

// GetResponseForPsychologist loads an answer set whose patient belongs to
// psychologistID
func (r *Repository) GetResponseForPsychologist(ctx context.Context, psychologistID, responseID int64) (*AssessmentResponse, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT r.id, r.link_id, r.patient_id, r.answers, r.completed_at, r.created_at
		FROM assessment_responses r JOIN patients p ON p.id = r.patient_id
		WHERE r.id = ? AND p.psychologist_id = ?
	`, responseID, psychologistID)

	resp, err := scanResponse(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get response %d: %w", responseID, notFound(err))
	}
	return resp, nil
}

// ListResponses returns the answer sets of a patient, newest first
func (r *Repository) ListResponses(ctx context.Context, patientID int64) ([]*AssessmentResponse, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+responseColumns+` FROM assessment_responses WHERE patient_id = ? ORDER BY id DESC
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list responses: %w", err)
	}
	defer rows.Close()

	var out []*AssessmentResponse
	for rows.Next() {
		resp, err := scanResponse(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan response: %w", err)
		}
		out = append(out, resp)
	}
	return out, rows.Err()
}

// --- assessments ---

func scanAssessment(s scanner) (*Assessment, error) {
	var a Assessment
	var created string

	err := s.Scan(&a.ID, &a.ResponseID, &a.PatientID,
		&a.IntellectualScore, &a.EmotionalScore, &a.ImaginativeScore, &a.SensoryScore, &a.MotorScore,
		&a.ClinicalAnalysis, &a.Diagnosis, &a.Recommendations, &a.ConfidenceLevel, &a.GiftednessType,
		&a.MarkerVersion, &a.Structured, &created)
	if err != nil {
		return nil, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return nil, err
	}
	return &a, nil
}

// CreateAssessment stores the narrative of a response. A response gets at
// most one; a second insert fails with ErrAssessmentExists.
func (r *Repository) CreateAssessment(ctx context.Context, a *Assessment) error {
	stmt, err := r.db.GetPreparedStatement(stmtInsertAnalysis)
	if err != nil {
		return err
	}

	now := r.now().UTC()
	res, err := stmt.ExecContext(ctx,
		a.ResponseID, a.PatientID,
		a.IntellectualScore, a.EmotionalScore, a.ImaginativeScore, a.SensoryScore, a.MotorScore,
		a.ClinicalAnalysis, a.Diagnosis, a.Recommendations, a.ConfidenceLevel, a.GiftednessType,
		a.MarkerVersion, a.Structured, formatTime(now))
	if err != nil {
		if isUniqueViolation(err) {
			return ErrAssessmentExists
		}
		return fmt.Errorf("failed to create assessment: %w", err)
	}

	if a.ID, err = res.LastInsertId(); err != nil {
		return fmt.Errorf("failed to read assessment id: %w", err)
	}
	a.CreatedAt = now
	return nil
}

// GetAssessmentByResponse loads the narrative of a response, if any
func (r *Repository) GetAssessmentByResponse(ctx context.Context, responseID int64) (*Assessment, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE response_id = ?`, responseID)
	a, err := scanAssessment(row)
	if err != nil {
		return nil, fmt.Errorf("failed to get assessment for response %d: %w", responseID, notFound(err))
	}
	return a, nil
}

// ListAssessments returns the narratives of a patient keyed by response id
func (r *Repository) ListAssessments(ctx context.Context, patientID int64) (map[int64]*Assessment, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+assessmentColumns+` FROM assessments WHERE patient_id = ?`, patientID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assessments: %w", err)
	}
	defer rows.Close()

	out := make(map[int64]*Assessment)
	for rows.Next() {
		a, err := scanAssessment(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan assessment: %w", err)
		}
		out[a.ResponseID] = a
	}
	return out, rows.Err()
}
