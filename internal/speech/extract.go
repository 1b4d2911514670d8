package speech

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// ExtractAudio pulls the audio track of a video file into an mp3 so the
// transcriber always receives plain audio.
func ExtractAudio(ctx context.Context, inputPath, outputPath string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-i", inputPath,
		"-vn",
		"-acodec", "libmp3lame",
		"-f", "mp3",
		"-y",
		outputPath,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg: %w: %s", err, truncate(stderr.String(), 512))
	}
	return nil
}
