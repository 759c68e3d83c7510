package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/Rosevil15/TPMSS-sub001/internal/apperror"
	"github.com/Rosevil15/TPMSS-sub001/internal/cases"
	"github.com/Rosevil15/TPMSS-sub001/internal/database"
	"github.com/Rosevil15/TPMSS-sub001/internal/location"
	"github.com/Rosevil15/TPMSS-sub001/internal/report"
	"github.com/Rosevil15/TPMSS-sub001/internal/session"
)

func (s *Server) health(c *gin.Context) {
	if err := s.store.PingContext(c.Request.Context()); err != nil {
		s.fail(c, apperror.StoreRead("health", err))
		return
	}
	c.JSON(http.StatusOK, Ok(gin.H{"status": "ok", "sessions": s.sessions.Stats()}))
}

func (s *Server) createSession(c *gin.Context) {
	sess, err := s.sessions.Create()
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Ok(gin.H{"session": sess.ID}))
}

func (s *Server) deleteSession(c *gin.Context) {
	if err := s.sessions.Remove(c.Param("id")); err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok[any](nil))
}

// session resolves the caller's session from the header or query.
func (s *Server) session(c *gin.Context) (*session.Session, error) {
	id := c.GetHeader(SessionHeader)
	if id == "" {
		id = c.Query("session")
	}
	sess, ok := s.sessions.Get(id)
	if !ok {
		return nil, session.ErrSessionNotFound
	}
	return sess, nil
}

func filterFrom(c *gin.Context) (location.Filter, error) {
	var f location.Filter
	if err := c.ShouldBindQuery(&f); err != nil {
		return f, apperror.Validation("filter", "invalid location filter")
	}
	if f.FilterType == "" {
		f.FilterType = location.All
	}
	return f, nil
}

func (s *Server) getStatistics(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	stats, err := s.statistics.Aggregate(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(stats))
}

func (s *Server) getBreakdown(c *gin.Context) {
	f, err := filterFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	b, err := s.breakdown.Aggregate(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(b))
}

func (s *Server) getWarnings(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	f, err := filterFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	res, err := s.warnings.Evaluate(c.Request.Context(), f)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(sess.SetWarnings(f, res)))
}

func (s *Server) moreWarnings(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(sess.MoreWarnings()))
}

func (s *Server) downloadReport(c *gin.Context) {
	sess, err := s.session(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	kind, ok := report.ParseKind(c.Param("kind"))
	if !ok {
		s.fail(c, apperror.Validation("report", fmt.Sprintf("unknown report type %q", c.Param("kind"))))
		return
	}
	writer, err := report.WriterFor(c.DefaultQuery("format", s.opts.ReportFormat))
	if err != nil {
		s.fail(c, apperror.Validation("report", err.Error()))
		return
	}
	f, err := filterFrom(c)
	if err != nil {
		s.fail(c, err)
		return
	}

	release, err := sess.BeginReport(string(kind))
	if err != nil {
		s.fail(c, err)
		return
	}
	defer release()

	theme := report.ParseTheme(c.DefaultQuery("theme", s.opts.ReportTheme))
	doc, err := s.reports.Generate(c.Request.Context(), kind, f, theme)
	if err != nil {
		s.fail(c, err)
		return
	}

	var buf bytes.Buffer
	if err := writer.Write(&buf, doc); err != nil {
		s.fail(c, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.FileNameFor(doc, writer)))
	c.Data(http.StatusOK, writer.ContentType(), buf.Bytes())
}

func caseID(c *gin.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, apperror.Validation("case", "invalid case id")
	}
	return id, nil
}

func (s *Server) createCase(c *gin.Context) {
	form := cases.NewForm("")
	if err := c.ShouldBindJSON(&form); err != nil {
		s.fail(c, bindError("create case", err))
		return
	}
	rec, err := s.cases.Create(c.Request.Context(), form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, Ok(caseResponse(rec)))
}

func (s *Server) getCase(c *gin.Context) {
	id, err := caseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	rec, err := s.cases.Get(c.Request.Context(), id)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(caseResponse(rec)))
}

func (s *Server) updateCase(c *gin.Context) {
	id, err := caseID(c)
	if err != nil {
		s.fail(c, err)
		return
	}
	var form cases.Form
	if err := c.ShouldBindJSON(&form); err != nil {
		s.fail(c, bindError("update case", err))
		return
	}
	rec, err := s.cases.Update(c.Request.Context(), id, form)
	if err != nil {
		s.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, Ok(caseResponse(rec)))
}

// CaseResponse is a case record as the API returns it.
type CaseResponse struct {
	CaseID int64 `json:"caseid"`
	cases.Form
}

func caseResponse(rec *database.CaseRecord) CaseResponse {
	return CaseResponse{CaseID: rec.CaseID, Form: cases.FormFromRecord(rec)}
}

type profileRequest struct {
	ProfileID     string `json:"profileid" binding:"max=64"`
	FirstName     string `json:"first_name" binding:"required,max=100"`
	MiddleName    string `json:"middle_name" binding:"max=100"`
	LastName      string `json:"last_name" binding:"required,max=100"`
	Age           *int   `json:"age" binding:"omitempty,min=0,max=120"`
	Region        string `json:"region" binding:"required,max=100"`
	Province      string `json:"province" binding:"max=100"`
	Municipality  string `json:"municipality" binding:"max=100"`
	Barangay      string `json:"barangay" binding:"max=100"`
	CivilStatus   string `json:"civil_status" binding:"max=50"`
	Religion      string `json:"religion" binding:"max=50"`
	ContactNumber string `json:"contact_number" binding:"max=30"`
}

func (s *Server) createProfile(c *gin.Context) {
	var req profileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError("create profile", err))
		return
	}
	if req.ProfileID == "" {
		req.ProfileID = uuid.NewString()
	}
	p := &database.Profile{
		ProfileID:     req.ProfileID,
		FirstName:     optional(req.FirstName),
		MiddleName:    optional(req.MiddleName),
		LastName:      optional(req.LastName),
		Age:           req.Age,
		Region:        optional(req.Region),
		Province:      optional(req.Province),
		Municipality:  optional(req.Municipality),
		Barangay:      optional(req.Barangay),
		CivilStatus:   optional(req.CivilStatus),
		Religion:      optional(req.Religion),
		ContactNumber: optional(req.ContactNumber),
	}
	if err := s.store.InsertProfile(c.Request.Context(), p); err != nil {
		s.fail(c, apperror.StoreWrite("create profile", err))
		return
	}
	c.JSON(http.StatusCreated, Ok(gin.H{"profileid": p.ProfileID}))
}

type healthRequest struct {
	ProfileID        string `json:"profileid" binding:"required"`
	PregnancyStatus  string `json:"pregnancy_status" binding:"max=50"`
	NumOfPregnancies *int   `json:"num_of_pregnancies" binding:"omitempty,min=0,max=20"`
	StageOfPregnancy string `json:"stage_of_pregnancy" binding:"max=50"`
	MedicalHistory   string `json:"medical_history" binding:"max=500"`
}

func (s *Server) createHealthRecord(c *gin.Context) {
	var req healthRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError("create health record", err))
		return
	}
	r := &database.HealthRecord{
		ProfileID:        req.ProfileID,
		PregnancyStatus:  optional(req.PregnancyStatus),
		NumOfPregnancies: req.NumOfPregnancies,
		StageOfPregnancy: optional(req.StageOfPregnancy),
		MedicalHistory:   optional(req.MedicalHistory),
	}
	if err := s.store.InsertHealthRecord(c.Request.Context(), r); err != nil {
		s.fail(c, apperror.StoreWrite("create health record", err))
		return
	}
	c.JSON(http.StatusCreated, Ok(gin.H{"id": r.ID}))
}

type educationRequest struct {
	ProfileID   string `json:"profileid" binding:"required"`
	Status      string `json:"status" binding:"omitempty,oneof=Enrolled Dropout Graduated"`
	Program     string `json:"program" binding:"max=100"`
	Institution string `json:"institution" binding:"max=100"`
	// EnrollDropoutDate is YYYY-MM-DD.
	EnrollDropoutDate string `json:"enroll_dropout_date" binding:"omitempty,datetime=2006-01-02"`
}

func (s *Server) createEducationRecord(c *gin.Context) {
	var req educationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.fail(c, bindError("create education record", err))
		return
	}
	r := &database.EducationRecord{
		ProfileID:   req.ProfileID,
		Status:      optional(req.Status),
		Program:     optional(req.Program),
		Institution: optional(req.Institution),
	}
	if req.EnrollDropoutDate != "" {
		d, err := time.Parse(time.DateOnly, req.EnrollDropoutDate)
		if err != nil {
			s.fail(c, apperror.Validation("create education record", "enroll_dropout_date must be YYYY-MM-DD"))
			return
		}
		r.EnrollDropoutDate = &d
	}
	if err := s.store.InsertEducationRecord(c.Request.Context(), r); err != nil {
		s.fail(c, apperror.StoreWrite("create education record", err))
		return
	}
	c.JSON(http.StatusCreated, Ok(gin.H{"id": r.ID}))
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
