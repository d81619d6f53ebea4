package env

import "fmt"

// OCI image labels read from the build info.
const (
	LabelImageTitle    = "org.opencontainers.image.title"
	LabelImageVersion  = "org.opencontainers.image.version"
	LabelImageRevision = "org.opencontainers.image.revision"
)

// ImageBuildInfo is the docker/metadata-action output, for example:
//
//	{
//	    "tags": ["ghcr.io/watonomous/repo-ingestion:main"],
//	    "labels": {
//	        "org.opencontainers.image.title": "repo-ingestion",
//	        "org.opencontainers.image.version": "main",
//	        "org.opencontainers.image.revision": "1d55b62b15c78251e0560af9e97927591e260a98"
//	    }
//	}
type ImageBuildInfo struct {
	Tags   []string
	Labels map[string]string
	// Raw is the decoded object as received. Never nil.
	Raw map[string]any
}

// NewBuildInfo extracts tags and labels from a decoded build info object.
// Entries of the wrong type are skipped.
func NewBuildInfo(raw map[string]any) ImageBuildInfo {
	if raw == nil {
		raw = map[string]any{}
	}

	info := ImageBuildInfo{Labels: map[string]string{}, Raw: raw}

	if tags, ok := raw["tags"].([]any); ok {
		for _, t := range tags {
			if s, ok := t.(string); ok {
				info.Tags = append(info.Tags, s)
			}
		}
	}

	if labels, ok := raw["labels"].(map[string]any); ok {
		for k, v := range labels {
			if s, ok := v.(string); ok {
				info.Labels[k] = s
			}
		}
	}

	return info
}

func (b ImageBuildInfo) label(key, fallback string) string {
	if v, ok := b.Labels[key]; ok && v != "" {
		return v
	}
	return fallback
}

func (b ImageBuildInfo) ImageTitle() string    { return b.label(LabelImageTitle, "unknown_image") }
func (b ImageBuildInfo) ImageVersion() string  { return b.label(LabelImageVersion, "unknown_version") }
func (b ImageBuildInfo) ImageRevision() string { return b.label(LabelImageRevision, "unknown_rev") }

// Release formats the image as "title:version@revision".
func (b ImageBuildInfo) Release() string {
	return fmt.Sprintf("%s:%s@%s", b.ImageTitle(), b.ImageVersion(), b.ImageRevision())
}
