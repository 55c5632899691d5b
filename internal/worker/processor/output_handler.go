package processor

import (
	"context"
	"os"

	"montage/internal/pkg/logger"
	"montage/internal/ports"
)

type OutputHandler struct {
	sp  ports.StorageProvider
	log *logger.Logger
}

func NewOutputHandler(sp ports.StorageProvider, log *logger.Logger) *OutputHandler {
	return &OutputHandler{sp: sp, log: log}
}

// Publish uploads the artifact and returns its object key, or "" when no
// provider is configured or the upload fails.
func (oh *OutputHandler) Publish(ctx context.Context, jobID, outputPath string) string {
	if oh.sp == nil {
		return ""
	}
	log := oh.log.FromContext(ctx).WithJobID(jobID)

	f, err := os.Open(outputPath)
	if err != nil {
		log.Warn("artifact upload skipped", "error", err.Error())
		return ""
	}
	defer f.Close()

	var size int64
	if st, err := f.Stat(); err == nil {
		size = st.Size()
	}

	res, err := oh.sp.PutObject(ctx, ports.PutObjectInput{
		ObjectKey:   ArtifactKey(jobID),
		ContentType: "video/mp4",
		Reader:      f,
		Size:        size,
	})
	if err != nil {
		log.Warn("artifact upload failed", "provider", oh.sp.Provider(), "error", err.Error())
		return ""
	}

	log.Info("artifact uploaded", "provider", oh.sp.Provider(), "object_key", res.ObjectKey, "size", res.Size)
	return res.ObjectKey
}
