package spam

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"riskgate/internal/risk/models"
)

type failingIndex struct{}

func (failingIndex) Seen(context.Context, string, time.Duration) (bool, error) {
	return false, errors.New("redis: connection refused")
}

func (failingIndex) Contains(context.Context, string) (bool, error) {
	return false, errors.New("redis: connection refused")
}

type AnalyzerSuite struct {
	suite.Suite
	ctx      context.Context
	analyzer *Analyzer
}

func TestAnalyzerSuite(t *testing.T) {
	suite.Run(t, new(AnalyzerSuite))
}

func (s *AnalyzerSuite) SetupTest() {
	s.ctx = context.Background()
	a, err := New(NewMemoryIndex(), WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)
	s.analyzer = a
}

func (s *AnalyzerSuite) analyze(content string, tier models.TrustTier) *Result {
	return s.analyzeAs("u1", content, tier, UsePublish)
}

func (s *AnalyzerSuite) analyzeAs(subject, content string, tier models.TrustTier, use Use) *Result {
	res, err := s.analyzer.Analyze(s.ctx, content, Subject{ID: subject, Tier: tier}, use)
	s.Require().NoError(err)
	return res
}

func (s *AnalyzerSuite) TestCleanContent() {
	res := s.analyze("Finally got the sourdough starter going, thanks for the tips everyone.", models.TierBasic)
	s.Zero(res.Score)
	s.Equal(ActionAllow, res.Action)
	s.Empty(res.Categories)
}

func (s *AnalyzerSuite) TestDuplicateIgnoresWhitespace() {
	first := s.analyze("Great recipe for bread.\nLoved it!", models.TierBasic)
	s.False(first.Duplicate)

	second := s.analyze("  great   recipe\tfor bread.\r\n\r\n loved it!  ", models.TierBasic)
	s.True(second.Duplicate)
	s.Equal(first.Hash, second.Hash)
	s.Contains(second.Categories, CategoryDuplicate)
}

func (s *AnalyzerSuite) TestDuplicatesAreScopedToSubject() {
	const text = "Thanks, this helped a lot."

	alice := s.analyzeAs("alice", text, models.TierTrusted, UsePublish)
	s.False(alice.Duplicate)
	s.Equal(ActionAllow, alice.Action)

	bob := s.analyzeAs("bob", text, models.TierTrusted, UsePublish)
	s.False(bob.Duplicate, "another subject posting the same text is not a resubmission")
	s.Equal(ActionAllow, bob.Action)

	again := s.analyzeAs("alice", text, models.TierTrusted, UsePublish)
	s.True(again.Duplicate)
	s.Equal(alice.Hash, again.Hash)
}

func (s *AnalyzerSuite) TestPreviewDoesNotRecord() {
	const text = "Draft announcement for the bake sale on Saturday."

	for range 2 {
		preview := s.analyzeAs("u1", text, models.TierBasic, UsePreview)
		s.False(preview.Duplicate)
	}
	published := s.analyzeAs("u1", text, models.TierBasic, UsePublish)
	s.False(published.Duplicate, "a preview never makes the real submission a duplicate")

	preview := s.analyzeAs("u1", text, models.TierBasic, UsePreview)
	s.True(preview.Duplicate, "a preview still reports an existing duplicate")
}

func (s *AnalyzerSuite) TestEditKeepsOwnText() {
	const text = "Updated the schedule for next week."

	s.False(s.analyzeAs("u1", text, models.TierBasic, UsePublish).Duplicate)
	edit := s.analyzeAs("u1", text, models.TierBasic, UseEdit)
	s.False(edit.Duplicate)
	s.NotContains(edit.Categories, CategoryDuplicate)
}

func (s *AnalyzerSuite) TestPharmaWithLinksBlocks() {
	res := s.analyze("Buy cheap pills at our online pharmacy, no prescription needed! visit http://pills.xyz and http://bit.ly/abc", models.TierNew)
	s.Equal(ActionBlock, res.Action)
	s.Contains(res.Categories, CategoryPharma)
	s.Contains(res.Categories, CategoryLinks)
	s.Contains(res.Categories, CategoryDomains)
	s.Equal(2, res.LinkStats.Total)
	s.Equal([]string{"bit.ly", "pills.xyz"}, res.LinkStats.SuspiciousDomains)
}

func (s *AnalyzerSuite) TestLinkAllowanceScalesWithTrust() {
	content := "Sources: https://go.dev/doc https://pkg.go.dev/net/http https://github.com/golang/go for the full discussion thread and history."

	newbie := s.analyze(content, models.TierNew)
	s.Contains(newbie.Categories, CategoryLinks)

	s.SetupTest()
	trusted := s.analyze(content, models.TierTrusted)
	s.NotContains(trusted.Categories, CategoryLinks)
	s.Less(trusted.Score, newbie.Score)
	s.Equal([]string{"github.com", "go.dev"}, trusted.LinkStats.Domains)
}

func (s *AnalyzerSuite) TestFormatting() {
	res := s.analyze("THIS IS THE BEST OFFER YOU WILL EVER SEE TODAY!!!!!!!", models.TierBasic)
	s.Contains(res.Reasons, "excessive capitalization")
	s.Contains(res.Reasons, "repeated characters")

	res = s.analyze("deal deal deal deal deal deal today only for you friend", models.TierBasic)
	s.Contains(res.Reasons, "repetitive wording")
}

func (s *AnalyzerSuite) TestIndexOutageDoesNotFail() {
	a, err := New(failingIndex{}, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	s.Require().NoError(err)

	res, err := a.Analyze(s.ctx, "hello there", Subject{ID: "u1", Tier: models.TierBasic}, UsePublish)
	s.Require().NoError(err)
	s.False(res.Duplicate)
	s.Contains(res.Reasons, "duplicate check unavailable")
}

func (s *AnalyzerSuite) TestInvalidThresholds() {
	_, err := New(NewMemoryIndex(), WithThresholds(Thresholds{Review: 60, Block: 50}))
	s.Error(err)
}

func TestNormalize(t *testing.T) {
	cases := map[string]string{
		"Hello   World":      "hello world",
		"\n\tHello World \n": "hello world",
		"a\u200bb":           "a b",
		"":                   "",
	}
	for in, want := range cases {
		if got := Normalize(in); got != want {
			t.Errorf("Normalize(%q) = %q, want %q", in, got, want)
		}
	}
	if Hash("Buy  NOW") != Hash("buy now") {
		t.Error("hash must ignore case and whitespace runs")
	}
	if Hash("buy now") == Hash("buy know") {
		t.Error("distinct content must hash differently")
	}
}
