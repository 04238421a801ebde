package services

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/agora/internal/core/domain"
)

func words(n int) string {
	return strings.TrimSpace(strings.Repeat("selectivity matters here ", n/3+1))
}

// exactWords returns the first n words of words(n).
func exactWords(n int) string {
	return strings.Join(strings.Fields(words(n))[:n], " ")
}

const groundedClaim = "The pore conductance reached 42 nS in dilute KCl solutions. Nice. " +
	"Selectivity arises because the double layers overlap strongly."

func TestResponseValidator_Classify(t *testing.T) {
	v := NewResponseValidator(nil)

	tests := []struct {
		name string
		text string
		want domain.ResponseClass
	}{
		{name: "short reply", text: "I agree with that.", want: domain.ResponseSimple},
		{name: "conversational opener", text: "Thank you, that was a thorough summary of the membrane results so far.", want: domain.ResponseSimple},
		{name: "number with unit", text: "The measured conductance reached 42 nS in one molar KCl for this pore.", want: domain.ResponseSubstantive},
		{name: "citation", text: "As reported by Smith et al. the selectivity of graphene oxide membranes is remarkable.", want: domain.ResponseSubstantive},
		{name: "year citation", text: "The rectification first reported (2006) still shapes how nanopore diodes are designed.", want: domain.ResponseSubstantive},
		{name: "moderate prose", text: words(60), want: domain.ResponseSimple},
		{name: "forty plain words", text: exactWords(40), want: domain.ResponseSimple},
		{name: "sixty words with capacitance", text: exactWords(54) + " the electrodes reached 280 F/g overall", want: domain.ResponseSubstantive},
		{name: "short non-ascii reply with unit", text: "Η χωρητικότητα έφτασε 280 F/g στο νερό.", want: domain.ResponseSimple},
		{name: "long prose", text: words(160), want: domain.ResponseSubstantive},
		{name: "mechanistic argument", text: words(60) + " because charge dominates", want: domain.ResponseSubstantive},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, v.Classify(tt.text))
		})
	}
}

func TestResponseValidator_Validate(t *testing.T) {
	v := NewResponseValidator(nil)

	simple := v.Validate("Good point.", nil)
	assert.True(t, simple.IsValid)
	assert.Equal(t, domain.ResponseSimple, simple.Class)
	assert.Empty(t, simple.RetryGuidance)

	grounded := v.Validate(groundedClaim, []string{"recall_memory", "query_knowledge_base"})
	assert.True(t, grounded.IsValid)
	assert.Equal(t, domain.ResponseSubstantive, grounded.Class)

	ungrounded := v.Validate(groundedClaim, []string{"recall_memory"})
	assert.False(t, ungrounded.IsValid)
	assert.Equal(t, domain.ResponseSubstantive, ungrounded.Class)
	assert.Equal(t, []string{
		"pore conductance reached dilute solutions",
		"Selectivity arises because double layers overlap strongly",
	}, ungrounded.Claims)
	assert.Contains(t, ungrounded.RetryGuidance, "REQUIRED ACTION:")
	assert.Contains(t, ungrounded.RetryGuidance, `1. query_knowledge_base("pore conductance reached dilute solutions")`)

	stats := v.Stats()
	assert.Equal(t, 3, stats.Validations)
	assert.Equal(t, 1, stats.ForcedRetrievals)
	assert.InDelta(t, 1.0/3.0, stats.ForcedRetrievalRate(), 1e-9)

	v.ResetStats()
	assert.Zero(t, v.Stats())
}

func TestRetryGuidance(t *testing.T) {
	want := "Your response contains substantive scientific claims but lacks supporting evidence from your knowledge base.\n\n" +
		"REQUIRED ACTION:\n" +
		"Please query your knowledge base to support your claims. " +
		"Use the query_knowledge_base tool before making substantive scientific statements.\n\n" +
		"Suggested queries to support your response:\n" +
		"1. query_knowledge_base(\"one\")\n" +
		"2. query_knowledge_base(\"two\")\n" +
		"3. query_knowledge_base(\"three\")\n\n" +
		"After retrieving evidence, reformulate your response with proper citations."
	assert.Equal(t, want, retryGuidance([]string{"one", "two", "three", "four"}))

	assert.NotContains(t, retryGuidance(nil), "Suggested queries")
}

func TestResponseValidator_ExtractClaims(t *testing.T) {
	v := NewResponseValidator(nil)

	var many []string
	for i := 1; i <= 7; i++ {
		many = append(many, fmt.Sprintf("Sample number %d reached %d mV across the membrane", i, i*10))
	}
	claims := v.ExtractClaims(strings.Join(many, ". "))
	assert.Len(t, claims, 5)

	assert.Empty(t, v.ExtractClaims("Short one. Another short one! Plain words without any numbers at all here?"))
}

func TestSentenceToQuery(t *testing.T) {
	tests := []struct {
		name     string
		sentence string
		want     string
	}{
		{name: "punctuation removed", sentence: "Ions (K+, Na+) permeate through narrow, charged channels!", want: "Ions K Na permeate through narrow charged channels"},
		{name: "hyphens kept", sentence: "Ion-selective nanopores outperform polymer membranes", want: "Ion-selective nanopores outperform polymer membranes"},
		{name: "ten keywords", sentence: "alpha bravo charlie delta foxtrot hotel india juliet kilos limas mikes", want: "alpha bravo charlie delta foxtrot hotel india juliet kilos limas"},
		{name: "no keywords", sentence: "a b c of it", want: "a b c of it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SentenceToQuery(tt.sentence))
		})
	}
}

func TestResponseValidator_ForceRetrieval(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		text     string
		fallback string
		want     retrievalCall
	}{
		{name: "first claim", text: groundedClaim, fallback: "agenda", want: retrievalCall{text: "pore conductance reached dilute solutions", domain: domain.DomainBiology, topK: 5}},
		{name: "fallback query", text: "No claims here at all.", fallback: "ion channel gating", want: retrievalCall{text: "ion channel gating", domain: domain.DomainBiology, topK: 3}},
		{name: "generic query", text: "No claims here at all.", want: retrievalCall{text: "ion transport selectivity mechanisms", domain: domain.DomainBiology, topK: 3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			retrieval := &mockRetrieval{}
			v := NewResponseValidator(retrieval)

			got := v.ForceRetrieval(ctx, tt.text, tt.fallback, domain.DomainBiology)
			assert.Equal(t, "evidence for "+tt.want.text, got)
			require.Len(t, retrieval.queries, 1)
			assert.Equal(t, tt.want, retrieval.queries[0])
		})
	}
}

func TestResponseValidator_ForceRetrieval_WithoutRetrieval(t *testing.T) {
	got := NewResponseValidator(nil).ForceRetrieval(context.Background(), groundedClaim, "", domain.DomainBiology)
	assert.Contains(t, got, "Unable to retrieve information from knowledge base.")
}
