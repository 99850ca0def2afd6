package main

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/stockcount-api/internal/domain/entity"
	"github.com/jhoicas/stockcount-api/pkg/jwt"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMigrateList(t *testing.T) {
	out, err := run(t, "migrate", "--list")
	require.NoError(t, err)
	lines := strings.Fields(out)
	require.NotEmpty(t, lines)
	assert.Equal(t, "001_catalog.sql", lines[0])
}

func TestToken_EmiteJWTValido(t *testing.T) {
	t.Setenv("JWT_SECRET", "secreto-de-prueba")
	t.Setenv("STORE_DRIVER", "memory")

	out, err := run(t, "token", "--user", "sup-1", "--branch", "B1", "--role", "supervisor", "--minutes", "5")
	require.NoError(t, err)

	claims, err := jwt.Parse("secreto-de-prueba", strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "sup-1", claims.UserID)
	assert.Equal(t, "B1", claims.BranchID)
	assert.Equal(t, "supervisor", claims.Role)
}

func TestToken_RolInvalido(t *testing.T) {
	_, err := run(t, "token", "--user", "u", "--role", "bodeguero")
	assert.Error(t, err)
}

func TestFormatoInvalido(t *testing.T) {
	_, err := run(t, "--format", "xml", "migrate", "--list")
	assert.Error(t, err)
}

func TestPrintSession(t *testing.T) {
	snap := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	session := &entity.CountSession{ID: "S1", BranchID: "B1", Scope: entity.ScopeFull, Status: entity.SessionStatusReview, SnapshotAt: &snap}
	lines := []*entity.CountLine{{
		ID: "L1", SessionID: "S1", ProductCodeVersionID: "P1",
		ExpectedQty: decimal.NewFromInt(5), CountedQty: decimal.NewFromInt(7), ReviewStatus: entity.ReviewStatusPending,
	}}

	var text bytes.Buffer
	require.NoError(t, printSession(&text, "text", session, lines))
	assert.Contains(t, text.String(), "estado review")
	assert.Contains(t, text.String(), "P1")

	var raw bytes.Buffer
	require.NoError(t, printSession(&raw, "json", session, lines))
	var decoded struct {
		Session struct {
			ID string `json:"id"`
		} `json:"session"`
		Lines []struct {
			Variance decimal.Decimal `json:"variance"`
		} `json:"lines"`
	}
	require.NoError(t, json.Unmarshal(raw.Bytes(), &decoded))
	assert.Equal(t, "S1", decoded.Session.ID)
	require.Len(t, decoded.Lines, 1)
	assert.True(t, decoded.Lines[0].Variance.Equal(decimal.NewFromInt(2)))
}
