package domain

import (
	"fmt"
	"strings"
)

// KnowledgeDomain identifies a subject area that partitions both the
// paper collections and the agent memory collections.
type KnowledgeDomain string

// Available knowledge domains.
const (
	DomainElectrochemistry KnowledgeDomain = "electrochemistry"
	DomainMembraneScience  KnowledgeDomain = "membrane_science"
	DomainBiology          KnowledgeDomain = "biology"
	DomainNanofluidics     KnowledgeDomain = "nanofluidics"

	// DomainAll is the pseudo-domain used for union retrieval.
	// It never names a collection of its own.
	DomainAll KnowledgeDomain = "all"
)

const (
	papersSuffix = "_papers"
	memorySuffix = "_agent_memory"
)

// AllDomains returns the concrete knowledge domains in their canonical order.
func AllDomains() []KnowledgeDomain {
	return []KnowledgeDomain{
		DomainElectrochemistry,
		DomainMembraneScience,
		DomainBiology,
		DomainNanofluidics,
	}
}

// ParseDomain converts a user-supplied name into a KnowledgeDomain.
// "all" is accepted; anything outside the fixed set is ErrInvalidDomain.
func ParseDomain(s string) (KnowledgeDomain, error) {
	d := KnowledgeDomain(strings.ToLower(strings.TrimSpace(s)))
	if d == DomainAll || d.IsValid() {
		return d, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidDomain, s)
}

// IsValid returns true for the four concrete domains.
func (d KnowledgeDomain) IsValid() bool {
	switch d {
	case DomainElectrochemistry, DomainMembraneScience, DomainBiology, DomainNanofluidics:
		return true
	default:
		return false
	}
}

// String returns the string representation.
func (d KnowledgeDomain) String() string {
	return string(d)
}

// Description returns the human-readable description stored in collection metadata.
func (d KnowledgeDomain) Description() string {
	switch d {
	case DomainElectrochemistry:
		return "Electrochemistry (Supercapacitors, CDI, EDL)"
	case DomainMembraneScience:
		return "Membrane Science (Desalination, Ion Separation)"
	case DomainBiology:
		return "Biology (Ion Channels: K+, Na+, Ca2+)"
	case DomainNanofluidics:
		return "Nanofluidics (Synthetic Nanopores, Nanochannels)"
	case DomainAll:
		return "All domains"
	default:
		return unknownDescription
	}
}

// PapersCollection returns the name of the domain's paper collection.
func (d KnowledgeDomain) PapersCollection() string {
	return string(d) + papersSuffix
}

// MemoryCollection returns the name of the domain's agent memory collection.
func (d KnowledgeDomain) MemoryCollection() string {
	return string(d) + memorySuffix
}

// Expand returns the concrete domains a query against d should touch.
func (d KnowledgeDomain) Expand() []KnowledgeDomain {
	if d == DomainAll {
		return AllDomains()
	}
	return []KnowledgeDomain{d}
}
