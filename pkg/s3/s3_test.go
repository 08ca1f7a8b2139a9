package s3

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Alijeyrad/consultorio_backend/config"
)

func TestReportKey(t *testing.T) {
	assert.Equal(t, "reports/u1/Reporte.xlsx", ReportKey("/reports/", "u1", "Reporte.xlsx"))
	assert.Equal(t, "u1/r.xlsx", ReportKey("", "u1", "r.xlsx"))
}

func TestIsAbsoluteURL(t *testing.T) {
	assert.True(t, IsAbsoluteURL("https://cdn.example.com/receta.png"))
	assert.True(t, IsAbsoluteURL("data:image/png;base64,AAAA"))
	assert.False(t, IsAbsoluteURL("templates/clinic_a/receta.png"))
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), config.S3Config{})
	assert.Error(t, err)
}

func TestPresignDownload(t *testing.T) {
	c, err := New(context.Background(), config.S3Config{
		Endpoint:        "http://127.0.0.1:9000",
		Region:          "us-east-1",
		AccessKeyID:     "key",
		SecretAccessKey: "secret",
		Bucket:          "consultorio",
		PresignTTLSec:   60,
	})
	require.NoError(t, err)

	// presigning is local; no request is sent
	url, err := c.PresignDownload(context.Background(), "templates/clinic_a/receta.png")
	require.NoError(t, err)
	assert.Contains(t, url, "http://127.0.0.1:9000/consultorio/templates/clinic_a/receta.png")
	assert.Contains(t, url, "X-Amz-Expires=60")
}
