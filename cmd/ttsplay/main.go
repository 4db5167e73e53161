// Command ttsplay is a demo CLI that drives the playback core against a
// plain text file, printing decoration ranges as it advances a simulated
// sink clock.
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/audiocache"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/bridge"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/clock"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/conf"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/logging"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/sink"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/store"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/synthesis"
	"github.com/adrianlyjak/obsidian-aloud-tts-sub002/internal/textsplit"
)

func main() {
	if err := RootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// RootCommand builds the ttsplay CLI root command.
func RootCommand() *cobra.Command {
	var configPath string
	var chunkType string

	rootCmd := &cobra.Command{
		Use:   "ttsplay",
		Short: "Streaming text-to-speech playback core demo",
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config overlay")

	playCmd := &cobra.Command{
		Use:   "play [file]",
		Short: "Play a text file through a simulated sink, printing decoration ranges",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlay(args[0], configPath, chunkType)
		},
	}
	playCmd.Flags().StringVar(&chunkType, "chunk-type", "", "sentence or paragraph (defaults to config)")

	rootCmd.AddCommand(playCmd)
	return rootCmd
}

func runPlay(path, configPath, chunkType string) error {
	logging.Init(logging.DefaultOptions())

	settings, err := conf.Load(configPath)
	if err != nil {
		return fmt.Errorf("ttsplay: loading config: %w", err)
	}
	if chunkType != "" {
		settings.Playback.ChunkType = conf.ChunkType(chunkType)
	}

	text, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("ttsplay: reading %s: %w", path, err)
	}

	clk := clock.New()
	cache := audiocache.FromSettings(settings)
	provider := synthesis.NewFakeProvider()
	fakeSink := sink.NewFakeSink(func(bytes []byte) time.Duration {
		// Roughly 15 characters per second, so prefetch and retry behavior
		// is visible without waiting for a real provider round trip.
		return time.Duration(len(bytes)) * time.Second / 15
	})

	st := store.New(settings, cache, provider, fakeSink, textsplit.DefaultClean, clk)
	defer st.Destroy()

	sess := st.StartPlayer(store.StartOptions{
		Filename:     path,
		FriendlyName: path,
		Text:         string(text),
	})

	printer := &consoleEditor{}
	br := bridge.New(sess)
	br.SetActiveEditor(printer)
	defer br.Destroy()

	for i := 0; i < 200 && sess.Position() != -1; i++ {
		fakeSink.Advance(250 * time.Millisecond)
		time.Sleep(5 * time.Millisecond)
	}

	fmt.Println("playback finished")
	return nil
}

// consoleEditor is a minimal bridge.Editor that prints decoration ranges to
// stdout instead of driving a real text editor.
type consoleEditor struct {
	last bridge.ViewState
}

func (c *consoleEditor) ID() string { return "console" }

func (c *consoleEditor) SetViewState(vs bridge.ViewState) {
	if vs == c.last {
		return
	}
	c.last = vs
	fmt.Printf("playing-now=[%d,%d)\n", vs.PlayingNow.Start, vs.PlayingNow.End)
}

func (c *consoleEditor) ScrollIntoView(r bridge.Range, center bool) {}
