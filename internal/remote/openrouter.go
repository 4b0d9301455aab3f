package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"github.com/claimwatch/claim-analysis/pkg/config"
	"github.com/claimwatch/claim-analysis/pkg/models"
	"github.com/claimwatch/claim-analysis/pkg/resilience"
	"go.uber.org/zap"
)

var jsonBlockPattern = regexp.MustCompile(`(?s)\{.*\}`)

// OpenRouterClient scores claims through an OpenRouter-compatible
// chat-completions endpoint.
type OpenRouterClient struct {
	httpClient *http.Client
	apiKey     string
	baseURL    string
	model      string
	breaker    *resilience.Breaker
	cache      *VerdictCache
	log        *zap.Logger
}

// Ensure the client satisfies the orchestrator's capability.
var _ Scorer = (*OpenRouterClient)(nil)

// NewOpenRouterClient creates a remote scoring client. The cache is
// optional; a nil cache disables verdict reuse.
func NewOpenRouterClient(cfg *config.RemoteConfig, breaker *resilience.Breaker, cache *VerdictCache, log *zap.Logger) *OpenRouterClient {
	if log == nil {
		log = zap.NewNop()
	}
	return &OpenRouterClient{
		httpClient: &http.Client{Timeout: cfg.RequestTimeout()},
		apiKey:     cfg.APIKey,
		baseURL:    cfg.BaseURL,
		model:      cfg.Model,
		breaker:    breaker,
		cache:      cache,
		log:        log,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type verdictPayload struct {
	RiskScore            int      `json:"riskScore"`
	SuspiciousIndicators []string `json:"suspiciousIndicators"`
	RiskBreakdown        string   `json:"riskBreakdown"`
	RecommendedAction    string   `json:"recommendedAction"`
}

// Score submits the claim narrative to the provider and parses the verdict.
// Transport and status failures map to ErrUnavailable, unparsable verdicts
// to ErrMalformedResponse.
func (c *OpenRouterClient) Score(ctx context.Context, text string, attachment *models.Attachment) (*models.AnalysisResult, error) {
	if c.cache != nil {
		if cached, err := c.cache.Get(ctx, text, attachment); err != nil {
			c.log.Debug("verdict cache lookup failed", zap.Error(err))
		} else if cached != nil {
			return cached, nil
		}
	}

	result, err := c.breaker.Execute(ctx, func(ctx context.Context) (interface{}, error) {
		return c.score(ctx, text, attachment)
	})
	if err != nil {
		if errors.Is(err, resilience.ErrCircuitOpen) {
			return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
		}
		return nil, err
	}

	verdict := result.(*models.AnalysisResult)

	if c.cache != nil {
		if err := c.cache.Set(ctx, text, attachment, verdict); err != nil {
			c.log.Debug("verdict cache store failed", zap.Error(err))
		}
	}

	return verdict, nil
}

func (c *OpenRouterClient) score(ctx context.Context, text string, attachment *models.Attachment) (*models.AnalysisResult, error) {
	prompt := fmt.Sprintf("Analyze this insurance claim for fraud. Respond with JSON only:\n%s\n", text)
	if attachment != nil {
		prompt += fmt.Sprintf("[%s]\n", attachment.MimeType)
	}
	prompt += `
JSON format: {"riskScore":0-100,"suspiciousIndicators":[],"riskBreakdown":"","recommendedAction":"Approve|Investigate|Reject"}`

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: 0.3,
		MaxTokens:   500,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encoding request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: building request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("X-Title", "ClaimWatch")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: provider returned status %d", ErrUnavailable, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrUnavailable, err)
	}

	return parseVerdict(raw)
}

// parseVerdict extracts the JSON verdict from a chat completion and
// validates it against the result contract.
func parseVerdict(raw []byte) (*models.AnalysisResult, error) {
	var completion chatResponse
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if len(completion.Choices) == 0 {
		return nil, fmt.Errorf("%w: no choices in completion", ErrMalformedResponse)
	}

	block := jsonBlockPattern.FindString(completion.Choices[0].Message.Content)
	if block == "" {
		return nil, fmt.Errorf("%w: no JSON object in completion content", ErrMalformedResponse)
	}

	var verdict verdictPayload
	if err := json.Unmarshal([]byte(block), &verdict); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	if verdict.RiskScore < 0 || verdict.RiskScore > 100 {
		return nil, fmt.Errorf("%w: risk score %d out of range", ErrMalformedResponse, verdict.RiskScore)
	}

	action := models.RecommendedAction(verdict.RecommendedAction)
	switch action {
	case models.ActionApprove, models.ActionInvestigate, models.ActionReject:
	default:
		return nil, fmt.Errorf("%w: unknown recommended action %q", ErrMalformedResponse, verdict.RecommendedAction)
	}

	indicators := verdict.SuspiciousIndicators
	if len(indicators) == 0 {
		indicators = []string{}
	}

	return &models.AnalysisResult{
		RiskScore:         verdict.RiskScore,
		Indicators:        indicators,
		Breakdown:         verdict.RiskBreakdown,
		RecommendedAction: action,
	}, nil
}
