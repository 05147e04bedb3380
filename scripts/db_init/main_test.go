package main

import (
	"context"
	"testing"

	"github.com/garnizeh/probetas/internal/auth"
	"github.com/garnizeh/probetas/pkg/models"
	"github.com/garnizeh/probetas/pkg/repository/mock"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestSeedAdmin(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name      string
		env       map[string]string
		wantUser  string
		wantEmail string
		wantErr   bool
	}{
		{name: "NotConfigured", env: map[string]string{}},
		{
			name:      "EmailUsername",
			env:       map[string]string{"PROBETAS_SEED_ADMIN_USERNAME": "Admin@Lab.test", "PROBETAS_SEED_ADMIN_PASSWORD": "changeme"},
			wantUser:  "Admin@Lab.test",
			wantEmail: "admin@lab.test",
		},
		{
			name:      "ExplicitEmail",
			env:       map[string]string{"PROBETAS_SEED_ADMIN_USERNAME": "admin", "PROBETAS_SEED_ADMIN_PASSWORD": "changeme", "PROBETAS_SEED_ADMIN_EMAIL": "root@lab.test"},
			wantUser:  "admin",
			wantEmail: "root@lab.test",
		},
		{
			name:    "MissingEmail",
			env:     map[string]string{"PROBETAS_SEED_ADMIN_USERNAME": "admin", "PROBETAS_SEED_ADMIN_PASSWORD": "changeme"},
			wantErr: true,
		},
		{
			name:    "ShortPassword",
			env:     map[string]string{"PROBETAS_SEED_ADMIN_USERNAME": "admin@lab.test", "PROBETAS_SEED_ADMIN_PASSWORD": "123"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mocks := mock.NewMocks()
			got, err := seedAdmin(ctx, mocks.UserRepo, envOf(tt.env))
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("seedAdmin: %v", err)
			}
			if got != tt.wantUser {
				t.Fatalf("seeded %q, want %q", got, tt.wantUser)
			}
			if tt.wantUser == "" {
				if len(mocks.UserRepo.Users) != 0 {
					t.Fatalf("unexpected users: %+v", mocks.UserRepo.Users)
				}
				return
			}

			u := mocks.UserRepo.Users[0]
			if u.Email != tt.wantEmail || u.Role != models.RoleAdmin {
				t.Fatalf("unexpected admin: %+v", u)
			}
			if !auth.CheckPassword(tt.env["PROBETAS_SEED_ADMIN_PASSWORD"], u.PasswordHash) {
				t.Fatalf("password hash does not match")
			}
		})
	}
}

func TestSeedAdmin_RerunUpdatesPassword(t *testing.T) {
	ctx := context.Background()
	mocks := mock.NewMocks()
	env := map[string]string{"PROBETAS_SEED_ADMIN_USERNAME": "admin@lab.test", "PROBETAS_SEED_ADMIN_PASSWORD": "first-pass"}

	if _, err := seedAdmin(ctx, mocks.UserRepo, envOf(env)); err != nil {
		t.Fatalf("first seed: %v", err)
	}
	env["PROBETAS_SEED_ADMIN_PASSWORD"] = "second-pass"
	if _, err := seedAdmin(ctx, mocks.UserRepo, envOf(env)); err != nil {
		t.Fatalf("second seed: %v", err)
	}

	if len(mocks.UserRepo.Users) != 1 {
		t.Fatalf("expected one admin, got %d", len(mocks.UserRepo.Users))
	}
	if !auth.CheckPassword("second-pass", mocks.UserRepo.Users[0].PasswordHash) {
		t.Fatalf("password not updated on rerun")
	}
}
