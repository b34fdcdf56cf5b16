package notify

import (
	"net/url"
	"strings"
	"testing"

	"hireflow/pkg/domain"
)

func TestNormalizePhone(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"081234567890", "6281234567890"},
		{"0812-3456-7890", "6281234567890"},
		{"+62 812 3456 7890", "6281234567890"},
		{"6281234567890", "6281234567890"},
		{"555-1234", ""},
		{"", ""},
	}
	for _, tc := range tests {
		if got := NormalizePhone(tc.in); got != tc.want {
			t.Fatalf("NormalizePhone(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestWhatsAppLinkUnusablePhone(t *testing.T) {
	if got := WhatsAppLink("12345", "Budi", domain.StagePsychotest, ""); got != "" {
		t.Fatalf("expected empty link for foreign number, got %q", got)
	}
}

func TestWhatsAppLinkTargetsNormalizedNumber(t *testing.T) {
	link := WhatsAppLink("081234567890", "Budi", domain.StageHired, "")
	if !strings.HasPrefix(link, "https://wa.me/6281234567890?text=") {
		t.Fatalf("unexpected link prefix: %q", link)
	}
}

func TestWhatsAppLinkMessageContent(t *testing.T) {
	link := WhatsAppLink("081234567890", "Budi", domain.StagePsychotest, "https://test.example/psy")
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	msg := u.Query().Get("text")
	if !strings.Contains(msg, "Psikotes") {
		t.Fatalf("psychotest template missing, got %q", msg)
	}
	if !strings.Contains(msg, "https://test.example/psy") {
		t.Fatalf("additional info missing, got %q", msg)
	}
	if !strings.Contains(msg, "*Budi*") {
		t.Fatalf("candidate name missing, got %q", msg)
	}
}

func TestWhatsAppLinkGenericFallback(t *testing.T) {
	link := WhatsAppLink("081234567890", "Budi", domain.StageHRReview, "")
	u, err := url.Parse(link)
	if err != nil {
		t.Fatalf("parse link: %v", err)
	}
	msg := u.Query().Get("text")
	if !strings.Contains(msg, "HR Review") {
		t.Fatalf("generic template should name the stage, got %q", msg)
	}
}
