package handler

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/dto"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/middleware"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/models"
	"github.com/MichelBusse/erp-system-schuelertreff-sub001/internal/service"
)

type subjectRepoMock struct {
	subjects []models.Subject
	created  *models.Subject
}

func (m *subjectRepoMock) List(ctx context.Context) ([]models.Subject, error) {
	return m.subjects, nil
}

func (m *subjectRepoMock) FindByID(ctx context.Context, id int64) (*models.Subject, error) {
	for _, s := range m.subjects {
		if s.ID == id {
			return &s, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *subjectRepoMock) Create(ctx context.Context, subject *models.Subject) error {
	subject.ID = 1
	m.created = subject
	return nil
}

func (m *subjectRepoMock) Update(ctx context.Context, subject *models.Subject) error { return nil }
func (m *subjectRepoMock) Delete(ctx context.Context, id int64) error                { return nil }

func newSubjectTestContext(t *testing.T, method, target string, payload interface{}, claims *models.JWTClaims) (*gin.Context, *httptest.ResponseRecorder) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var body bytes.Buffer
	if payload != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(payload))
	}
	req, err := http.NewRequest(method, target, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	if claims != nil {
		c.Set(middleware.ContextUserKey, claims)
	}
	return c, w
}

func TestSubjectHandlerCreate(t *testing.T) {
	repo := &subjectRepoMock{}
	handler := NewSubjectHandler(service.NewSubjectService(repo, nil, nil))

	c, w := newSubjectTestContext(t, http.MethodPost, "/subjects",
		dto.SubjectPayload{Name: "Mathematics", Shorthand: "MA", Color: "#ff0000"},
		&models.JWTClaims{UserID: 1, Role: models.RoleAdmin})

	handler.Create(c)
	require.Equal(t, http.StatusCreated, w.Code)
	require.NotNil(t, repo.created)
	assert.Equal(t, "Mathematics", repo.created.Name)
}

func TestSubjectHandlerCreateForbiddenForTeachers(t *testing.T) {
	repo := &subjectRepoMock{}
	handler := NewSubjectHandler(service.NewSubjectService(repo, nil, nil))

	c, w := newSubjectTestContext(t, http.MethodPost, "/subjects",
		dto.SubjectPayload{Name: "Mathematics", Shorthand: "MA"},
		&models.JWTClaims{UserID: 3, Role: models.RoleTeacher})

	handler.Create(c)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Nil(t, repo.created)
}

func TestSubjectHandlerCreateInvalidBody(t *testing.T) {
	handler := NewSubjectHandler(service.NewSubjectService(&subjectRepoMock{}, nil, nil))

	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(http.MethodPost, "/subjects", bytes.NewReader([]byte(`invalid`)))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: 1, Role: models.RoleAdmin})

	handler.Create(c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
