package llm

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/packages/param"
	"github.com/openai/openai-go/shared"
)

const (
	extractLettersSystem = "You convert a child's spoken spelling into individual letters. " +
		"The child is spelling a word one letter at a time, but speech recognition " +
		"often garbles individual letters into words. For example:\n" +
		"- 'let e cessary' means the child said N-E-C-E-S-S-A-R-Y\n" +
		"- 'are a see e' means R-A-C-E\n" +
		"- 'bee you tea full' means B-E-A-U-T-I-F-U-L\n" +
		"- 'age a are em' means H-A-R-M\n" +
		"Output only valid JSON. No markdown."

	wordContextSystem = "You are a helpful spelling bee pronouncer for a 9-year-old child. " +
		"Given a word, you MUST provide a real, child-friendly definition and an example sentence.\n" +
		"Rules:\n" +
		"- The definition should be one short sentence a child can understand.\n" +
		"- The example sentence should use the word naturally.\n" +
		"- Do NOT say 'a spelling word' — always give a real definition.\n" +
		"- Output JSON only: {\"definition\":\"...\",\"sentence\":\"...\"}\n" +
		"- No markdown, no extra keys, no commentary.\n"

	randomWordsSystem = "You are a spelling bee word generator for a 9-year-old child. " +
		"Generate unique English words suitable for a 3rd-5th grade spelling bee. " +
		"Rules:\n" +
		"- Mix easy, medium, and hard words.\n" +
		"- Include a variety of word types and topics.\n" +
		"- No offensive, violent, or inappropriate words.\n" +
		"- Each word should be a single word (no spaces, no hyphens).\n" +
		"- Output a JSON object only: {\"words\":[\"word1\",\"word2\",...]}\n" +
		"- No markdown, no extra keys, no commentary.\n"

	extractWordsSystem = "You extract spelling words from images. Output only valid JSON. No markdown."
)

var bareLetter = regexp.MustCompile(`^[a-z]$`)

// OpenAIConfig configures the OpenAI-compatible client. Text and vision
// requests may go to different base URLs so that a local vLLM deployment can
// serve each from its own model server.
type OpenAIConfig struct {
	TextBaseURL   string
	TextModel     string
	VisionBaseURL string
	VisionModel   string
	APIKey        string
	Timeout       time.Duration
	// MaxWords caps the word list returned by image extraction.
	MaxWords int
}

// OpenAIClient implements Client and VisionClient against any
// OpenAI-compatible chat-completions endpoint.
type OpenAIClient struct {
	text        oai.Client
	vision      oai.Client
	textModel   string
	visionModel string
	maxWords    int
}

var (
	_ Client       = (*OpenAIClient)(nil)
	_ VisionClient = (*OpenAIClient)(nil)
)

func NewOpenAIClient(cfg OpenAIConfig) (*OpenAIClient, error) {
	if strings.TrimSpace(cfg.TextBaseURL) == "" {
		return nil, fmt.Errorf("llm: text base URL must not be empty")
	}
	if strings.TrimSpace(cfg.TextModel) == "" {
		return nil, fmt.Errorf("llm: text model must not be empty")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 200
	}
	apiKey := cfg.APIKey
	if apiKey == "" {
		// vLLM ignores the key but the SDK requires one.
		apiKey = "not-needed"
	}
	httpClient := &http.Client{Timeout: cfg.Timeout}

	c := &OpenAIClient{
		text: oai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(cfg.TextBaseURL),
			option.WithHTTPClient(httpClient),
		),
		textModel:   cfg.TextModel,
		visionModel: cfg.VisionModel,
		maxWords:    cfg.MaxWords,
	}
	if strings.TrimSpace(cfg.VisionBaseURL) != "" {
		c.vision = oai.NewClient(
			option.WithAPIKey(apiKey),
			option.WithBaseURL(cfg.VisionBaseURL),
			option.WithHTTPClient(httpClient),
		)
	} else {
		c.vision = c.text
		if c.visionModel == "" {
			c.visionModel = c.textModel
		}
	}
	return c, nil
}

func (c *OpenAIClient) complete(ctx context.Context, client oai.Client, model string, messages []oai.ChatCompletionMessageParamUnion, temperature float64, maxTokens int64) (string, error) {
	params := oai.ChatCompletionNewParams{
		Model:               shared.ChatModel(model),
		Messages:            messages,
		Temperature:         param.NewOpt(temperature),
		MaxCompletionTokens: param.NewOpt(maxTokens),
	}
	resp, err := client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("llm: chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("llm: empty choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// ExtractLetters implements Client. The prompt teaches the model the same
// homophone catalogue the deterministic parser uses, so both layers agree on
// what a garbled letter sounds like.
func (c *OpenAIClient) ExtractLetters(ctx context.Context, transcript, target string) ([]string, error) {
	user := "Extract the individual letters this child was trying to spell from the transcript.\n" +
		"The speech recognizer often converts letter sounds into words:\n" +
		"- Letter sounds like 'en' or 'and' may mean N\n" +
		"- 'are' or 'our' may mean R\n" +
		"- 'see' or 'sea' may mean C\n" +
		"- 'double you' or 'dub' may mean W\n" +
		"- 'why' may mean Y\n" +
		"- 'age' or 'each' may mean H\n" +
		"- 'eye' may mean I\n" +
		"- 'oh' may mean O\n" +
		"- 'you' may mean U\n" +
		"- 'be' or 'bee' may mean B\n" +
		"Rules:\n" +
		"- Output JSON only: {\"letters\":[\"a\",\"b\"],\"confidence\":\"high|medium|low\"}\n" +
		"- letters must be a-z only\n" +
		"- If the transcript contains a complete word (not spelled letters), try to extract the individual letters the child likely said\n" +
		fmt.Sprintf("Transcript: %q\n", transcript)

	content, err := c.complete(ctx, c.text, c.textModel, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(extractLettersSystem),
		oai.UserMessage(user),
	}, 0, 200)
	if err != nil {
		return nil, err
	}

	obj, ok := ExtractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("llm: no JSON object in letters response")
	}
	letters := make([]string, 0, len(target))
	for _, l := range stringSlice(obj["letters"]) {
		l = strings.ToLower(strings.TrimSpace(l))
		if bareLetter.MatchString(l) {
			letters = append(letters, l)
		}
	}
	return letters, nil
}

// WordContext implements Client.
func (c *OpenAIClient) WordContext(ctx context.Context, word string) (WordContext, error) {
	user := fmt.Sprintf("Give me a simple definition and example sentence for the word %q.", word)
	content, err := c.complete(ctx, c.text, c.textModel, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(wordContextSystem),
		oai.UserMessage(user),
	}, 0.3, 150)
	if err != nil {
		return WordContext{}, err
	}
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return WordContext{}, fmt.Errorf("llm: no JSON object in word context response")
	}
	wc := WordContext{
		Definition: stringField(obj, "definition"),
		Sentence:   stringField(obj, "sentence"),
	}
	// Reject placeholder answers the model emits when it gives up.
	switch strings.ToLower(wc.Definition) {
	case "", "a spelling word", "a spelling word.", "it is a spelling word.":
		wc.Definition = ""
	}
	return wc, nil
}

// RandomWords implements Client.
func (c *OpenAIClient) RandomWords(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = 25
	}
	user := fmt.Sprintf("Generate %d random spelling bee words.", n)
	content, err := c.complete(ctx, c.text, c.textModel, []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(randomWordsSystem),
		oai.UserMessage(user),
	}, 0.9, 300)
	if err != nil {
		return nil, err
	}
	obj, ok := ExtractJSONObject(content)
	if !ok {
		return nil, fmt.Errorf("llm: no JSON object in random words response")
	}
	words := cleanWordList(stringSlice(obj["words"]), n)
	if len(words) < 5 {
		return nil, fmt.Errorf("llm: model returned too few valid words (%d)", len(words))
	}
	return words, nil
}

// ExtractWords implements VisionClient. The vision model occasionally
// returns unusable output, so the call retries once before giving up.
func (c *OpenAIClient) ExtractWords(ctx context.Context, image []byte, contentType string) ([]string, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("llm: empty image")
	}
	if strings.TrimSpace(contentType) == "" {
		contentType = "image/png"
	}
	dataURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(image))

	userText := "Extract the spelling list from this image.\n" +
		"Return JSON only in the form: {\"words\":[...]}\n" +
		"Rules:\n" +
		"- words only, lowercase\n" +
		"- remove numbering/bullets/punctuation\n" +
		"- split combined lines into separate words\n" +
		"- no extra keys, no commentary\n"

	messages := []oai.ChatCompletionMessageParamUnion{
		oai.SystemMessage(extractWordsSystem),
		oai.UserMessage([]oai.ChatCompletionContentPartUnionParam{
			oai.TextContentPart(userText),
			oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: dataURL}),
		}),
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		content, err := c.complete(ctx, c.vision, c.visionModel, messages, 0, 800)
		if err != nil {
			lastErr = err
			continue
		}
		obj, ok := ExtractJSONObject(content)
		if !ok {
			lastErr = fmt.Errorf("llm: no JSON object in extraction response")
			continue
		}
		if words := cleanWordList(stringSlice(obj["words"]), c.maxWords); len(words) > 0 {
			return words, nil
		}
		lastErr = fmt.Errorf("llm: no words parsed from extraction response")
	}
	return nil, lastErr
}

func cleanWordList(raw []string, limit int) []string {
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, w := range raw {
		w = strings.ToLower(strings.TrimSpace(w))
		if w == "" || !isAlpha(w) {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

func isAlpha(s string) bool {
	for _, r := range s {
		if r < 'a' || r > 'z' {
			return false
		}
	}
	return true
}
