package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// ApplicationStatus enumerates the enrollment application lifecycle.
type ApplicationStatus string

const (
	ApplicationStatusSubmitted ApplicationStatus = "submitted"
	ApplicationStatusApproved  ApplicationStatus = "approved"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
)

// Application represents an enrollment application row.
type Application struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"user_id"`
	CourseIDs   StringList        `db:"course_ids" json:"course_ids"`
	Notes       string            `db:"notes" json:"notes,omitempty"`
	Files       FileRefs          `db:"files" json:"files"`
	ParentInfo  ParentInfo        `db:"parent_info" json:"parent_info"`
	StudentInfo StudentInfo       `db:"student_info" json:"student_info"`
	Status      ApplicationStatus `db:"status" json:"status"`
	SubmittedAt time.Time         `db:"submitted_at" json:"submitted_at"`
	ProcessedAt *time.Time        `db:"processed_at" json:"processed_at,omitempty"`
	ProcessedBy *string           `db:"processed_by" json:"processed_by,omitempty"`
}

// ApplicationDetail joins applicant identity onto the application.
type ApplicationDetail struct {
	Application
	Username      string `db:"username" json:"username"`
	ApplicantName string `db:"applicant_name" json:"applicant_name"`
}

// ApplicationFilter captures listing criteria for applications.
type ApplicationFilter struct {
	UserID    string
	Status    ApplicationStatus
	Page      int
	PageSize  int
	SortOrder string
}

// FileRef describes one stored uploaded document.
type FileRef struct {
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	MIME         string `json:"mime"`
	Size         int64  `json:"size"`
	Type         string `json:"type"`
}

// Address is the applicant's postal address.
type Address struct {
	HouseNo  string `json:"house_no,omitempty"`
	Street   string `json:"street,omitempty"`
	Barangay string `json:"barangay,omitempty"`
	City     string `json:"city,omitempty"`
	Province string `json:"province,omitempty"`
	Country  string `json:"country,omitempty"`
	Zip      string `json:"zip,omitempty"`
}

// IndigenousInfo captures the indigenous community declaration.
type IndigenousInfo struct {
	Belongs *bool  `json:"belongs,omitempty"`
	Specify string `json:"specify,omitempty"`
}

// StudentInfo is the applicant profile captured at intake.
type StudentInfo struct {
	FirstName  string         `json:"first_name" validate:"required,max=100"`
	MiddleName *string        `json:"middle_name,omitempty" validate:"omitempty,max=100"`
	LastName   string         `json:"last_name" validate:"required,max=100"`
	BirthDate  *string        `json:"birth_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Birthplace *string        `json:"birthplace,omitempty"`
	Gender     *string        `json:"gender,omitempty"`
	Religion   *string        `json:"religion,omitempty"`
	Age        *int           `json:"age,omitempty" validate:"omitempty,gte=0,lte=200"`
	Address    Address        `json:"address"`
	Contact    string         `json:"contact,omitempty"`
	Email      string         `json:"email" validate:"required,email"`
	Indigenous IndigenousInfo `json:"indigenous"`
}

// ParentInfo is the guardian profile captured at intake.
type ParentInfo struct {
	Name             string  `json:"name,omitempty"`
	Relation         string  `json:"relation,omitempty"`
	Contact          string  `json:"contact,omitempty"`
	Consent          bool    `json:"consent"`
	LivesWith        bool    `json:"lives_with"`
	FatherName       *string `json:"father_name,omitempty"`
	MotherMaidenName *string `json:"mother_maiden_name,omitempty"`
	LegalGuardian    *string `json:"legal_guardian_name,omitempty"`
	GuardianContact  *string `json:"guardian_contact,omitempty"`
}

// StringList stores a JSON array of ids in a single column.
type StringList []string

// FileRefs stores a JSON array of FileRef in a single column.
type FileRefs []FileRef

// Value implements driver.Valuer.
func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		l = StringList{}
	}
	return json.Marshal(l)
}

// Scan implements sql.Scanner.
func (l *StringList) Scan(src interface{}) error {
	return scanJSON(src, l)
}

// Value implements driver.Valuer.
func (f FileRefs) Value() (driver.Value, error) {
	if f == nil {
		f = FileRefs{}
	}
	return json.Marshal(f)
}

// Scan implements sql.Scanner.
func (f *FileRefs) Scan(src interface{}) error {
	return scanJSON(src, f)
}

// Value implements driver.Valuer.
func (s StudentInfo) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner.
func (s *StudentInfo) Scan(src interface{}) error {
	return scanJSON(src, s)
}

// Value implements driver.Valuer.
func (p ParentInfo) Value() (driver.Value, error) {
	return json.Marshal(p)
}

// Scan implements sql.Scanner.
func (p *ParentInfo) Scan(src interface{}) error {
	return scanJSON(src, p)
}

func scanJSON(src, dest interface{}) error {
	switch v := src.(type) {
	case nil:
		return nil
	case []byte:
		if len(v) == 0 {
			return nil
		}
		return json.Unmarshal(v, dest)
	case string:
		if v == "" {
			return nil
		}
		return json.Unmarshal([]byte(v), dest)
	default:
		return fmt.Errorf("unsupported json column type %T", src)
	}
}
