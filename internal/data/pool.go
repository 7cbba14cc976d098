// Package data provides the bounded pools virtual users draw from:
// pre-provisioned credentials, synthetic phone numbers, and random signup
// emails. Pools are safe for concurrent use; entries may be handed to more
// than one virtual user at a time (the target tolerates reuse in test mode).
package data

import (
	"encoding/csv"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"

	"github.com/brianvoe/gofakeit/v7"
)

// Credential is one pre-provisioned account, immutable once handed out
// for the duration of a journey.
type Credential struct {
	Email    string
	Password string
}

// DefaultPassword matches the password the provisioning task assigns to
// every pool account.
const DefaultPassword = "salty pickles"

// CredentialPool picks uniformly from the provisioned accounts
// testuser1@example.com .. testuser{n-1}@example.com.
type CredentialPool struct {
	creds []Credential
	mu    sync.Mutex
	rng   *rand.Rand
}

// NewCredentialPool builds the standard pool of n provisioned accounts.
// The account range is 1..n-1, mirroring the provisioning task.
func NewCredentialPool(n int) *CredentialPool {
	if n < 2 {
		n = 2
	}
	creds := make([]Credential, 0, n-1)
	for i := 1; i < n; i++ {
		creds = append(creds, Credential{
			Email:    fmt.Sprintf("testuser%d@example.com", i),
			Password: DefaultPassword,
		})
	}
	return newCredentialPool(creds)
}

// LoadCredentialPool reads a CSV file with an email,password header row,
// for runs against targets provisioned with a custom user set.
func LoadCredentialPool(path string) (*CredentialPool, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	defer f.Close()

	records, err := csv.NewReader(f).ReadAll()
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	if len(records) < 2 {
		return nil, fmt.Errorf("credential file %s must have a header row and at least one data row", path)
	}

	var emailIdx, passIdx = -1, -1
	for i, h := range records[0] {
		switch strings.TrimSpace(strings.ToLower(h)) {
		case "email":
			emailIdx = i
		case "password":
			passIdx = i
		}
	}
	if emailIdx < 0 || passIdx < 0 {
		return nil, fmt.Errorf("credential file %s must have email and password columns", path)
	}

	creds := make([]Credential, 0, len(records)-1)
	for _, rec := range records[1:] {
		if emailIdx >= len(rec) || passIdx >= len(rec) {
			continue
		}
		creds = append(creds, Credential{Email: rec[emailIdx], Password: rec[passIdx]})
	}
	if len(creds) == 0 {
		return nil, fmt.Errorf("credential file %s has no usable rows", path)
	}
	return newCredentialPool(creds), nil
}

func newCredentialPool(creds []Credential) *CredentialPool {
	return &CredentialPool{
		creds: creds,
		rng:   rand.New(rand.NewSource(rand.Int63())),
	}
}

// Pick returns a uniformly random credential. Thread-safe.
func (p *CredentialPool) Pick() Credential {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.creds[p.rng.Intn(len(p.creds))]
}

// Len returns the number of credentials in the pool.
func (p *CredentialPool) Len() int {
	return len(p.creds)
}

// PhonePoolSize is the number of synthetic numbers the provisioning task
// reserves: (415) 555-0001 through (415) 555-1000.
const PhonePoolSize = 1000

// PhonePool picks uniformly from the reserved synthetic number block.
// No uniqueness is guaranteed across concurrent virtual users.
type PhonePool struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewPhonePool() *PhonePool {
	return &PhonePool{rng: rand.New(rand.NewSource(rand.Int63()))}
}

// Pick returns a random number from the block. Thread-safe.
func (p *PhonePool) Pick() string {
	p.mu.Lock()
	n := p.rng.Intn(PhonePoolSize) + 1
	p.mu.Unlock()
	return fmt.Sprintf("(415) 555-%04d", n)
}

// EmailGenerator produces throwaway signup addresses of the form
// test+<32 hex chars>@test.com.
type EmailGenerator struct {
	mu    sync.Mutex
	faker *gofakeit.Faker
}

func NewEmailGenerator() *EmailGenerator {
	return &EmailGenerator{faker: gofakeit.New(0)}
}

// Next returns a fresh signup address. Thread-safe.
func (g *EmailGenerator) Next() string {
	g.mu.Lock()
	id := g.faker.UUID()
	g.mu.Unlock()
	return "test+" + strings.ReplaceAll(id, "-", "") + "@test.com"
}
