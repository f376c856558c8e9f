// Package profile loads the rider identity and emergency contacts.
package profile

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"helmetguard-client/internal/parse"
)

// ErrNoContacts is returned when an operation needs at least one contact.
var ErrNoContacts = errors.New("no emergency contacts registered")

// Rider identifies the wearer.
type Rider struct {
	Name       string `yaml:"name" json:"name"`
	Phone      string `yaml:"phone" json:"phone"`
	BloodGroup string `yaml:"blood_group" json:"bloodGroup"`
	Vehicle    string `yaml:"vehicle" json:"vehicle"`
}

// Contact is an emergency contact.
type Contact struct {
	Name     string `yaml:"name" json:"name"`
	Phone    string `yaml:"phone" json:"phone"`
	Relation string `yaml:"relation" json:"relation"`
}

// Profile is the rider plus their contacts.
type Profile struct {
	Rider    Rider     `yaml:"rider" json:"rider"`
	Contacts []Contact `yaml:"contacts" json:"contacts"`
}

// RiderName returns the rider name or a generic fallback.
func (p Profile) RiderName() string {
	if strings.TrimSpace(p.Rider.Name) == "" {
		return "Rider"
	}
	return p.Rider.Name
}

// Load reads and validates a profile file. Contacts with malformed phone
// numbers are dropped with a log line rather than failing the load.
func Load(path string) (Profile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Profile{}, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, fmt.Errorf("parse profile %s: %w", path, err)
	}
	p.Rider.Name = strings.TrimSpace(p.Rider.Name)

	valid := p.Contacts[:0]
	for _, c := range p.Contacts {
		c.Name = strings.TrimSpace(c.Name)
		if c.Name == "" {
			log.Printf("Skipping contact without a name in %s", path)
			continue
		}
		if !parse.LocalPhoneValid(c.Phone) {
			log.Printf("Skipping contact %q: phone %q is not a 10-digit number", c.Name, c.Phone)
			continue
		}
		valid = append(valid, c)
	}
	p.Contacts = valid
	return p, nil
}
