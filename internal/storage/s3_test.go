package storage

import (
	"alcyxob/navistream/internal/config"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEndpointURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.S3Config
		want string
	}{
		{"aws default", config.S3Config{}, ""},
		{"bare host with ssl", config.S3Config{Endpoint: "minio.internal:9000", UseSSL: true}, "https://minio.internal:9000"},
		{"bare host without ssl", config.S3Config{Endpoint: "localhost:9000"}, "http://localhost:9000"},
		{"explicit scheme wins", config.S3Config{Endpoint: "http://localhost:9000", UseSSL: true}, "http://localhost:9000"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, endpointURL(tt.cfg))
		})
	}
}

func TestPublicBaseURL(t *testing.T) {
	assert.Equal(t, "https://cdn.example.com", publicBaseURL(config.S3Config{PublicBaseURL: "https://cdn.example.com/"}))
	assert.Equal(t, "http://localhost:9000/videos", publicBaseURL(config.S3Config{Endpoint: "localhost:9000", BucketName: "videos"}))
	assert.Equal(t, "https://videos.s3.us-east-1.amazonaws.com", publicBaseURL(config.S3Config{BucketName: "videos", Region: "us-east-1"}))
}
