package email

import (
	"fmt"
	"net/smtp"
	"strings"
	"testing"
)

func TestServiceIsConfigured(t *testing.T) {
	tests := []struct {
		name     string
		config   Config
		expected bool
	}{
		{
			name:     "empty config",
			config:   Config{},
			expected: false,
		},
		{
			name: "missing host",
			config: Config{
				Port: "587",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing port",
			config: Config{
				Host: "smtp.example.com",
				From: "test@example.com",
			},
			expected: false,
		},
		{
			name: "missing from",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
			},
			expected: false,
		},
		{
			name: "fully configured",
			config: Config{
				Host: "smtp.example.com",
				Port: "587",
				From: "test@example.com",
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := NewService(tt.config)
			if svc.IsConfigured() != tt.expected {
				t.Errorf("IsConfigured() = %v, want %v", svc.IsConfigured(), tt.expected)
			}
		})
	}
}

func TestRenderVerificationTemplate(t *testing.T) {
	data := VerificationData{
		AppName:         "DoSync",
		UserName:        "Test User",
		VerificationURL: "https://example.com/verify?token=abc123",
	}

	html, err := renderTemplate(verificationEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "DoSync") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test User") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/verify?token=abc123") {
		t.Error("template should contain verification URL")
	}
}

func TestRenderPasswordResetTemplate(t *testing.T) {
	data := PasswordResetData{
		AppName:  "DoSync",
		UserName: "Test User",
		ResetURL: "https://example.com/reset?token=xyz789",
	}

	html, err := renderTemplate(passwordResetEmailTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	if !strings.Contains(html, "DoSync") {
		t.Error("template should contain app name")
	}
	if !strings.Contains(html, "Test User") {
		t.Error("template should contain user name")
	}
	if !strings.Contains(html, "https://example.com/reset?token=xyz789") {
		t.Error("template should contain reset URL")
	}
	if !strings.Contains(html, "1 hour") {
		t.Error("template should mention expiration time")
	}
}

func TestRenderTaskNotificationTemplate(t *testing.T) {
	data := TaskNotificationData{
		AppName:    "DoSync",
		ActorName:  "Ada",
		TaskTitle:  "Ship release notes",
		BucketName: "This Week",
		Action:     "assigned you a task",
		TaskURL:    "https://example.com/tasks/tsk_1",
	}

	html, err := renderTemplate(taskNotificationTemplate, data)
	if err != nil {
		t.Fatalf("renderTemplate failed: %v", err)
	}

	for _, want := range []string{"Ada", "Ship release notes", "This Week", "https://example.com/tasks/tsk_1"} {
		if !strings.Contains(html, want) {
			t.Errorf("template should contain %q", want)
		}
	}
}

func TestRecipientBatching(t *testing.T) {
	svc := NewService(Config{
		Host: "smtp.example.com",
		Port: "587",
		From: "noreply@example.com",
	})

	var sends [][]string
	svc.send = func(addr string, a smtp.Auth, from string, to []string, msg []byte) error {
		sends = append(sends, to)
		return nil
	}

	to := make([]string, 250)
	for i := range to {
		to[i] = fmt.Sprintf("user%d@example.com", i)
	}

	if err := svc.SendEmail(to, "subject", "body"); err != nil {
		t.Fatalf("SendEmail failed: %v", err)
	}

	if len(sends) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(sends))
	}
	if len(sends[0]) != 100 || len(sends[1]) != 100 || len(sends[2]) != 50 {
		t.Errorf("unexpected batch sizes: %d, %d, %d", len(sends[0]), len(sends[1]), len(sends[2]))
	}
}
