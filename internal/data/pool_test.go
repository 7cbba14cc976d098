package data

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
)

func TestCredentialPool_RangeAndPassword(t *testing.T) {
	pool := NewCredentialPool(100)

	if pool.Len() != 99 {
		t.Errorf("expected 99 credentials for n=100, got %d", pool.Len())
	}

	emailRe := regexp.MustCompile(`^testuser([1-9][0-9]{0,2})@example\.com$`)
	for i := 0; i < 200; i++ {
		cred := pool.Pick()
		m := emailRe.FindStringSubmatch(cred.Email)
		if m == nil {
			t.Fatalf("unexpected email %q", cred.Email)
		}
		if cred.Password != "salty pickles" {
			t.Fatalf("unexpected password %q", cred.Password)
		}
	}
}

func TestCredentialPool_MinimumSize(t *testing.T) {
	pool := NewCredentialPool(0)
	if pool.Len() < 1 {
		t.Error("expected pool to clamp to at least one credential")
	}
}

func TestCredentialPool_ConcurrentPick(t *testing.T) {
	pool := NewCredentialPool(10)
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				pool.Pick()
			}
		}()
	}
	wg.Wait()
}

func TestLoadCredentialPool(t *testing.T) {
	path := filepath.Join(t.TempDir(), "creds.csv")
	content := "email,password\nalice@test.com,hunter2\nbob@test.com,hunter3\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	pool, err := LoadCredentialPool(path)
	if err != nil {
		t.Fatal(err)
	}
	if pool.Len() != 2 {
		t.Errorf("expected 2 credentials, got %d", pool.Len())
	}

	cred := pool.Pick()
	if !strings.HasSuffix(cred.Email, "@test.com") {
		t.Errorf("unexpected email %q", cred.Email)
	}
}

func TestLoadCredentialPool_Errors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name    string
		content string
	}{
		{"missing columns", "user,secret\na,b\n"},
		{"header only", "email,password\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, strings.ReplaceAll(tt.name, " ", "_")+".csv")
			if err := os.WriteFile(path, []byte(tt.content), 0o600); err != nil {
				t.Fatal(err)
			}
			if _, err := LoadCredentialPool(path); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadCredentialPool(filepath.Join(dir, "missing.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestPhonePool_Format(t *testing.T) {
	pool := NewPhonePool()
	phoneRe := regexp.MustCompile(`^\(415\) 555-(\d{4})$`)

	for i := 0; i < 500; i++ {
		phone := pool.Pick()
		m := phoneRe.FindStringSubmatch(phone)
		if m == nil {
			t.Fatalf("unexpected phone %q", phone)
		}
		if m[1] < "0001" || m[1] > "1000" {
			t.Fatalf("phone %q outside reserved block", phone)
		}
	}
}

func TestEmailGenerator_Format(t *testing.T) {
	gen := NewEmailGenerator()
	emailRe := regexp.MustCompile(`^test\+[0-9a-f]{32}@test\.com$`)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		email := gen.Next()
		if !emailRe.MatchString(email) {
			t.Fatalf("unexpected signup email %q", email)
		}
		if seen[email] {
			t.Fatalf("duplicate signup email %q", email)
		}
		seen[email] = true
	}
}
