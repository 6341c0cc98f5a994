package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/net/html"
)

// Transcript errors are typed so callers can report them without string matching
var (
	ErrCaptionsDisabled = errors.New("captions are disabled for this video")
	ErrNoMatchingTrack  = errors.New("no caption track in a preferred language")
)

const (
	ytPlayerResponseMarker = "ytInitialPlayerResponse = "
	ytAndroidVersion       = "20.10.38"
	ytAndroidUA            = "com.google.android.youtube/" + ytAndroidVersion + " (Linux; U; Android 11) gzip"
)

// DefaultTranscriptLanguages is the caption preference used when none is configured
var DefaultTranscriptLanguages = []string{"zh-TW", "zh-Hant", "zh", "en"}

type captionTrack struct {
	BaseURL      string `json:"baseUrl"`
	LanguageCode string `json:"languageCode"`
	Kind         string `json:"kind"` // "asr" = auto-generated
}

type playerResponse struct {
	Captions *struct {
		PlayerCaptionsTracklistRenderer struct {
			CaptionTracks []captionTrack `json:"captionTracks"`
		} `json:"playerCaptionsTracklistRenderer"`
	} `json:"captions"`
	PlayabilityStatus *struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	} `json:"playabilityStatus"`
}

type innertubeRequest struct {
	VideoID        string           `json:"videoId"`
	Context        innertubeContext `json:"context"`
	RacyCheckOk    bool             `json:"racyCheckOk"`
	ContentCheckOk bool             `json:"contentCheckOk"`
}

type innertubeContext struct {
	Client struct {
		ClientName        string `json:"clientName"`
		ClientVersion     string `json:"clientVersion"`
		AndroidSdkVersion int    `json:"androidSdkVersion,omitempty"`
		Hl                string `json:"hl,omitempty"`
		Gl                string `json:"gl,omitempty"`
	} `json:"client"`
}

type timedText struct {
	Lines []struct {
		Text string `xml:",chardata"`
	} `xml:"text"`
}

// Transcript fetches the caption text for a video, preferring the languages
// in order. The watch page is tried first and the ANDROID player endpoint
// second.
func (yt *YouTube) Transcript(ctx context.Context, videoID string, langs []string) (string, error) {
	if len(langs) == 0 {
		langs = DefaultTranscriptLanguages
	}

	text, watchErr := yt.transcriptFromWatchPage(ctx, videoID, langs)
	if watchErr == nil {
		return text, nil
	}
	yt.logger.Debug("youtube: watch page captions failed, trying player",
		slog.String("id", videoID), slog.Any("err", watchErr))

	text, err := yt.transcriptFromPlayer(ctx, videoID, langs)
	if err != nil {
		// a definite "no captions" answer outranks a transport failure
		if !isCaptionsMissing(err) && isCaptionsMissing(watchErr) {
			yt.logger.Debug("youtube: player fallback failed", slog.String("id", videoID), slog.Any("err", err))
			err = watchErr
		}
		return "", fmt.Errorf("transcript %s: %w", videoID, err)
	}
	return text, nil
}

func isCaptionsMissing(err error) bool {
	return errors.Is(err, ErrCaptionsDisabled) || errors.Is(err, ErrNoMatchingTrack)
}

func (yt *YouTube) transcriptFromWatchPage(ctx context.Context, videoID string, langs []string) (string, error) {
	body, err := yt.fetchPage(ctx, yt.webBase+"/watch?v="+videoID, 6*1024*1024)
	if err != nil {
		return "", fmt.Errorf("watch page: %w", err)
	}

	idx := bytes.Index(body, []byte(ytPlayerResponseMarker))
	if idx < 0 {
		return "", errors.New("ytInitialPlayerResponse not found in watch page")
	}
	data := extractJSON(body[idx+len(ytPlayerResponseMarker):])
	if data == nil {
		return "", errors.New("failed to extract ytInitialPlayerResponse JSON")
	}

	var pr playerResponse
	if err := json.Unmarshal(data, &pr); err != nil {
		return "", fmt.Errorf("decoding ytInitialPlayerResponse: %w", err)
	}
	return yt.transcriptFromPlayerResponse(ctx, pr, langs)
}

func (yt *YouTube) transcriptFromPlayer(ctx context.Context, videoID string, langs []string) (string, error) {
	var ireq innertubeRequest
	ireq.VideoID = videoID
	ireq.Context.Client.ClientName = "ANDROID"
	ireq.Context.Client.ClientVersion = ytAndroidVersion
	ireq.Context.Client.AndroidSdkVersion = 30
	ireq.Context.Client.Hl = "en"
	ireq.Context.Client.Gl = "US"
	ireq.RacyCheckOk = true
	ireq.ContentCheckOk = true

	reqBody, err := json.Marshal(ireq)
	if err != nil {
		return "", err
	}
	if err := yt.limiter.Wait(ctx); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, yt.webBase+"/youtubei/v1/player?prettyPrint=false", bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", ytAndroidUA)
	req.Header.Set("X-Youtube-Client-Name", "3")
	req.Header.Set("X-Youtube-Client-Version", ytAndroidVersion)

	resp, err := yt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("android player: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("android player: HTTP %d", resp.StatusCode)
	}

	var pr playerResponse
	if err := json.NewDecoder(resp.Body).Decode(&pr); err != nil {
		return "", fmt.Errorf("decoding player response: %w", err)
	}
	return yt.transcriptFromPlayerResponse(ctx, pr, langs)
}

func (yt *YouTube) transcriptFromPlayerResponse(ctx context.Context, pr playerResponse, langs []string) (string, error) {
	if pr.Captions == nil {
		if pr.PlayabilityStatus != nil && pr.PlayabilityStatus.Status != "" && pr.PlayabilityStatus.Status != "OK" {
			return "", fmt.Errorf("video not playable (%s): %s", pr.PlayabilityStatus.Status, pr.PlayabilityStatus.Reason)
		}
		return "", ErrCaptionsDisabled
	}
	tracks := pr.Captions.PlayerCaptionsTracklistRenderer.CaptionTracks
	if len(tracks) == 0 {
		return "", ErrCaptionsDisabled
	}
	track, err := pickTrack(tracks, langs)
	if err != nil {
		return "", err
	}
	return yt.fetchTimedText(ctx, track.BaseURL)
}

// needsPoToken reports whether a caption URL can only be fetched by a browser
func needsPoToken(baseURL string) bool {
	return strings.Contains(baseURL, "&exp=xpe")
}

// pickTrack walks the language list in order. For each language a manual
// track beats an auto-generated one, and an exact code beats a regional
// variant ("en" matches "en-GB").
func pickTrack(tracks []captionTrack, langs []string) (captionTrack, error) {
	usable := make([]captionTrack, 0, len(tracks))
	for _, t := range tracks {
		if !needsPoToken(t.BaseURL) {
			usable = append(usable, t)
		}
	}
	if len(usable) == 0 {
		return captionTrack{}, fmt.Errorf("%w: all tracks require a browser session", ErrNoMatchingTrack)
	}

	matchers := []func(t captionTrack, lang string) bool{
		func(t captionTrack, lang string) bool { return strings.EqualFold(t.LanguageCode, lang) && t.Kind != "asr" },
		func(t captionTrack, lang string) bool { return strings.EqualFold(t.LanguageCode, lang) },
		func(t captionTrack, lang string) bool { return langPrefix(t.LanguageCode, lang) && t.Kind != "asr" },
		func(t captionTrack, lang string) bool { return langPrefix(t.LanguageCode, lang) },
	}
	for _, lang := range langs {
		for _, match := range matchers {
			for _, t := range usable {
				if match(t, lang) {
					return t, nil
				}
			}
		}
	}

	available := make([]string, 0, len(usable))
	for _, t := range usable {
		available = append(available, t.LanguageCode)
	}
	return captionTrack{}, fmt.Errorf("%w (wanted %s, available %s)", ErrNoMatchingTrack,
		strings.Join(langs, ","), strings.Join(available, ","))
}

func langPrefix(code, lang string) bool {
	code, lang = strings.ToLower(code), strings.ToLower(lang)
	return strings.HasPrefix(code, lang+"-") || strings.HasPrefix(lang, code+"-")
}

func (yt *YouTube) fetchTimedText(ctx context.Context, baseURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", ytUserAgent)

	resp, err := yt.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetching timedtext: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("fetching timedtext: HTTP %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 2*1024*1024))
	if err != nil {
		return "", err
	}
	return parseTimedText(body)
}

func parseTimedText(body []byte) (string, error) {
	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("parsing timedtext XML: %w", err)
	}

	var sb strings.Builder
	for _, line := range tt.Lines {
		text := cleanCaption(line.Text)
		if text == "" {
			continue
		}
		if sb.Len() > 0 {
			sb.WriteByte(' ')
		}
		sb.WriteString(text)
	}
	if sb.Len() == 0 {
		return "", errors.New("caption track is empty")
	}
	return sb.String(), nil
}

// cleanCaption undoes the double entity encoding of timedtext and strips
// inline markup such as <font> tags
func cleanCaption(s string) string {
	s = html.UnescapeString(s)
	if strings.ContainsRune(s, '<') {
		var sb strings.Builder
		z := html.NewTokenizer(strings.NewReader(s))
		for {
			tt := z.Next()
			if tt == html.ErrorToken {
				break
			}
			if tt == html.TextToken {
				sb.Write(z.Text())
			}
		}
		s = sb.String()
	}
	return strings.Join(strings.Fields(s), " ")
}
