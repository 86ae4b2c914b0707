package storage

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"go.uber.org/zap"

	"github.com/summarizer-bot/meeting-summarizer/pkg/audio"
	"github.com/summarizer-bot/meeting-summarizer/pkg/config"
)

// AudioArchive uploads drained audio segments to object storage as WAV
// files. Uploads are best-effort: the pipeline never blocks on the archive.
type AudioArchive struct {
	client *minio.Client
	bucket string
	logger *zap.Logger
}

// NewAudioArchive connects to MinIO and ensures the bucket exists. Returns
// nil (and no error) when archiving is not configured.
func NewAudioArchive(cfg *config.ArchiveConfig, logger *zap.Logger) (*AudioArchive, error) {
	if !cfg.Enabled {
		return nil, nil
	}

	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create minio client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	exists, err := client.BucketExists(ctx, cfg.BucketName)
	if err != nil {
		return nil, fmt.Errorf("failed to check bucket: %w", err)
	}
	if !exists {
		if err := client.MakeBucket(ctx, cfg.BucketName, minio.MakeBucketOptions{}); err != nil {
			return nil, fmt.Errorf("failed to create bucket: %w", err)
		}
		logger.Info("created audio archive bucket", zap.String("bucket", cfg.BucketName))
	}

	return &AudioArchive{client: client, bucket: cfg.BucketName, logger: logger}, nil
}

// ArchiveSegment wraps the PCM segment in a WAV container and uploads it
// under the meeting's prefix. Failures are logged, not returned: a lost
// archive object must not interrupt transcription.
func (a *AudioArchive) ArchiveSegment(ctx context.Context, meetingID string, pcm []byte) {
	wav, err := audio.WAVFromPCM(pcm, audio.SampleRate, audio.Channels, audio.BitsPerSample)
	if err != nil {
		a.logger.Warn("failed to build WAV for archive",
			zap.String("meeting_id", meetingID),
			zap.Error(err),
		)
		return
	}

	objectName := fmt.Sprintf("%s/%s.wav", meetingID, time.Now().UTC().Format("20060102T150405Z"))
	_, err = a.client.PutObject(ctx, a.bucket, objectName, bytes.NewReader(wav), int64(len(wav)),
		minio.PutObjectOptions{ContentType: "audio/wav"})
	if err != nil {
		a.logger.Warn("failed to archive audio segment",
			zap.String("meeting_id", meetingID),
			zap.String("object", objectName),
			zap.Error(err),
		)
		return
	}

	a.logger.Debug("archived audio segment",
		zap.String("meeting_id", meetingID),
		zap.String("object", objectName),
		zap.Int("bytes", len(wav)),
	)
}
