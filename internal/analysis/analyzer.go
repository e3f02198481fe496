package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"regexp"
	"time"

	"gatehouse/internal/models"

	"gopkg.in/yaml.v3"
)

// Verdict is the raw outcome of one analysis call.
type Verdict struct {
	Clean    bool             `json:"clean"`
	Severity models.Severity  `json:"severity"`
	Findings []models.Finding `json:"findings,omitempty"`
}

// Analyzer is the external content-analysis capability. Implementations must
// honor ctx cancellation; the coordinator supplies the timeout.
type Analyzer interface {
	Analyze(ctx context.Context, title, body string) (Verdict, error)
}

// HTTPAnalyzer calls a remote analysis endpoint.
type HTTPAnalyzer struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewHTTPAnalyzer returns an analyzer backed by the given endpoint. The
// client timeout is a backstop; per-call deadlines come from ctx.
func NewHTTPAnalyzer(endpoint, apiKey string, timeout time.Duration) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout + time.Second},
	}
}

type analyzeRequest struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, title, body string) (Verdict, error) {
	payload, err := json.Marshal(analyzeRequest{Title: title, Body: body})
	if err != nil {
		return Verdict{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Verdict{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return Verdict{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Verdict{}, fmt.Errorf("analysis endpoint returned %d", resp.StatusCode)
	}

	var verdict Verdict
	if err := json.NewDecoder(resp.Body).Decode(&verdict); err != nil {
		return Verdict{}, fmt.Errorf("decoding analysis response: %w", err)
	}
	if verdict.Severity == "" {
		verdict.Severity = models.SeverityNone
	}
	return verdict, nil
}

// RuleAnalyzer is a local pattern-based analyzer for development and test
// environments, configured from a YAML rules file.
type RuleAnalyzer struct {
	rules []compiledRule
}

type ruleFile struct {
	Rules []struct {
		Pattern     string          `yaml:"pattern"`
		Category    string          `yaml:"category"`
		Severity    models.Severity `yaml:"severity"`
		Description string          `yaml:"description"`
	} `yaml:"rules"`
}

type compiledRule struct {
	re          *regexp.Regexp
	category    string
	severity    models.Severity
	description string
}

// NewRuleAnalyzer loads and compiles the rules file.
func NewRuleAnalyzer(path string) (*RuleAnalyzer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}
	return ParseRules(raw)
}

// ParseRules builds a RuleAnalyzer from raw YAML.
func ParseRules(raw []byte) (*RuleAnalyzer, error) {
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parsing rules: %w", err)
	}

	analyzer := &RuleAnalyzer{}
	for i, r := range file.Rules {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("rule %d: invalid pattern %q: %w", i, r.Pattern, err)
		}
		severity := r.Severity
		if severity == "" {
			severity = models.SeverityLow
		}
		analyzer.rules = append(analyzer.rules, compiledRule{
			re:          re,
			category:    r.Category,
			severity:    severity,
			description: r.Description,
		})
	}
	return analyzer, nil
}

func (a *RuleAnalyzer) Analyze(ctx context.Context, title, body string) (Verdict, error) {
	if err := ctx.Err(); err != nil {
		return Verdict{}, err
	}

	content := title + "\n" + body
	verdict := Verdict{Clean: true, Severity: models.SeverityNone}
	for _, rule := range a.rules {
		if !rule.re.MatchString(content) {
			continue
		}
		verdict.Clean = false
		verdict.Findings = append(verdict.Findings, models.Finding{
			Description: rule.description,
			Category:    rule.category,
		})
		if rule.severity.AtLeast(verdict.Severity) {
			verdict.Severity = rule.severity
		}
	}
	return verdict, nil
}
