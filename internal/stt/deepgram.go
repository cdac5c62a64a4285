package stt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
)

// DeepgramConfig holds the live-transcription endpoint settings.
type DeepgramConfig struct {
	URL       string `mapstructure:"url"`
	APIKey    string `mapstructure:"api_key"`
	Language  string `mapstructure:"language"`
	Punctuate bool   `mapstructure:"punctuate"`
	Interim   bool   `mapstructure:"interim"`
}

// Deepgram speaks the Deepgram live API: one websocket per stream, binary
// frames of audio in, JSON recognition results out.
type Deepgram struct {
	cfg    DeepgramConfig
	dialer *websocket.Dialer
}

func NewDeepgram(cfg DeepgramConfig) *Deepgram {
	return &Deepgram{cfg: cfg, dialer: websocket.DefaultDialer}
}

func (d *Deepgram) OpenStream(ctx context.Context) (Stream, error) {
	u, err := url.Parse(d.cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse deepgram url: %w", err)
	}
	q := u.Query()
	q.Set("language", d.cfg.Language)
	q.Set("punctuate", strconv.FormatBool(d.cfg.Punctuate))
	q.Set("interim_results", strconv.FormatBool(d.cfg.Interim))
	u.RawQuery = q.Encode()

	header := http.Header{}
	header.Set("Authorization", "Token "+d.cfg.APIKey)

	conn, _, err := d.dialer.DialContext(ctx, u.String(), header)
	if err != nil {
		return nil, fmt.Errorf("dial deepgram: %w", err)
	}

	s := &deepgramStream{
		conn:      conn,
		results:   make(chan Result, 32),
		interimOK: d.cfg.Interim,
	}
	go s.readLoop()
	return s, nil
}

type deepgramStream struct {
	conn      *websocket.Conn
	results   chan Result
	interimOK bool

	mu     sync.Mutex
	closed bool
}

// deepgramResponse mirrors the subset of the live API result we consume.
type deepgramResponse struct {
	IsFinal bool `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) Send(chunk []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("stream closed")
	}
	return s.conn.WriteMessage(websocket.BinaryMessage, chunk)
}

func (s *deepgramStream) Results() <-chan Result { return s.results }

// Close tells the provider the audio is finished and tears the socket
// down. Idempotent.
func (s *deepgramStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	_ = s.conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	return s.conn.Close()
}

func (s *deepgramStream) readLoop() {
	defer close(s.results)
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			s.mu.Lock()
			closed := s.closed
			s.mu.Unlock()
			if !closed {
				log.Error().Err(err).Str("module", "stt.deepgram").Msg("read error")
			}
			return
		}
		if res, ok := parseResult(data, s.interimOK); ok {
			select {
			case s.results <- res:
			default:
				log.Warn().Str("module", "stt.deepgram").Msg("result buffer full, dropping segment")
			}
		}
	}
}

// parseResult extracts the first alternative's transcript. Empty
// transcripts and, unless configured otherwise, interim results are
// skipped.
func parseResult(data []byte, interimOK bool) (Result, bool) {
	var resp deepgramResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		log.Warn().Err(err).Str("module", "stt.deepgram").Msg("unparseable result")
		return Result{}, false
	}
	if len(resp.Channel.Alternatives) == 0 {
		return Result{}, false
	}
	alt := resp.Channel.Alternatives[0]
	if alt.Transcript == "" {
		return Result{}, false
	}
	if !resp.IsFinal && !interimOK {
		return Result{}, false
	}
	return Result{Text: alt.Transcript, Confidence: alt.Confidence, IsFinal: resp.IsFinal}, true
}
