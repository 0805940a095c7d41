package main

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	serverURL  string
	audioFile  string
	chunkSize  int
	sampleRate int
	realtime   bool
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:   "streamclient",
	Short: "Stream a PCM or WAV file to the transcription relay and print the transcripts",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := zap.NewNop()
		if verbose {
			var err error
			if logger, err = zap.NewDevelopment(); err != nil {
				return err
			}
		}
		defer logger.Sync()

		audio, err := os.ReadFile(audioFile)
		if err != nil {
			return fmt.Errorf("failed to read audio file: %w", err)
		}
		pcm := stripWAVHeader(audio)
		logger.Info("Loaded audio", zap.String("file", audioFile), zap.Int("bytes", len(pcm)))

		return stream(logger, pcm)
	},
}

func init() {
	rootCmd.Flags().StringVar(&serverURL, "url", "ws://localhost:8000/ws", "relay WebSocket URL")
	rootCmd.Flags().StringVar(&audioFile, "file", "", "16-bit little-endian mono PCM or WAV file")
	rootCmd.Flags().IntVar(&chunkSize, "chunk", 3200, "bytes per binary frame")
	rootCmd.Flags().IntVar(&sampleRate, "sample-rate", 16000, "sample rate used to pace frames with --realtime")
	rootCmd.Flags().BoolVar(&realtime, "realtime", false, "send frames at playback speed")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "log connection details")
	rootCmd.MarkFlagRequired("file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// serverMessage is either a transcript or a failure
type serverMessage struct {
	Text      string `json:"text"`
	IsFinal   bool   `json:"is_final"`
	Error     string `json:"error"`
	ErrorType string `json:"errorType"`
}

func stream(logger *zap.Logger, pcm []byte) error {
	if chunkSize <= 0 {
		return fmt.Errorf("chunk must be positive, got %d", chunkSize)
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	logger.Info("Connecting", zap.String("url", serverURL))
	c, _, err := websocket.DefaultDialer.Dial(serverURL, nil)
	if err != nil {
		return fmt.Errorf("dial: %w", err)
	}
	defer c.Close()

	done := make(chan struct{})
	go readMessages(c, logger, done)

	chunks := splitChunks(pcm, chunkSize)
	interval := chunkInterval(chunkSize, sampleRate)
	for i, chunk := range chunks {
		select {
		case <-done:
			logger.Info("Server closed the connection early", zap.Int("sent", i))
			return nil
		case <-interrupt:
			logger.Info("Interrupted", zap.Int("sent", i))
			return closeAndWait(c, done)
		default:
		}

		if err := c.WriteMessage(websocket.BinaryMessage, chunk); err != nil {
			return fmt.Errorf("write audio: %w", err)
		}
		if realtime {
			time.Sleep(interval)
		}
	}
	logger.Info("Finished sending audio", zap.Int("chunks", len(chunks)))

	// Give the backend a moment to produce the last results before closing
	select {
	case <-done:
		return nil
	case <-interrupt:
	case <-time.After(2 * time.Second):
	}
	return closeAndWait(c, done)
}

func readMessages(c *websocket.Conn, logger *zap.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := c.ReadMessage()
		if err != nil {
			logger.Debug("Read ended", zap.Error(err))
			return
		}

		var msg serverMessage
		if err := json.Unmarshal(payload, &msg); err != nil {
			logger.Warn("Unexpected message", zap.ByteString("payload", payload))
			continue
		}
		switch {
		case msg.Error != "":
			fmt.Printf("error: %s (%s)\n", msg.Error, msg.ErrorType)
		case msg.IsFinal:
			fmt.Printf("final:   %s\n", msg.Text)
		default:
			fmt.Printf("partial: %s\n", msg.Text)
		}
	}
}

// closeAndWait sends a close frame and waits, with a timeout, for the server
// to close the connection.
func closeAndWait(c *websocket.Conn, done <-chan struct{}) error {
	err := c.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	if err != nil {
		return fmt.Errorf("write close: %w", err)
	}
	select {
	case <-done:
	case <-time.After(time.Second):
	}
	return nil
}
