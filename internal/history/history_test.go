package history

import (
	"encoding/json"
	"testing"

	"mediagrab/internal/medias"
)

func TestVideoDigestDeterministic(t *testing.T) {
	video := medias.Video{
		Parser:   medias.TypeYouTube,
		Original: "https://youtu.be/abc",
		URL:      "https://cdn/v.mp4",
		Caption:  "title",
	}
	a, err := json.Marshal(video)
	if err != nil {
		t.Fatal(err)
	}
	b, err := json.Marshal(video)
	if err != nil {
		t.Fatal(err)
	}

	if videoDigest(a) != videoDigest(b) {
		t.Error("equal videos must produce equal digests")
	}
}

func TestVideoDigestSensitiveToContent(t *testing.T) {
	v1 := medias.Video{Parser: medias.TypeYouTube, Original: "https://youtu.be/abc", URL: "https://cdn/v.mp4"}
	v2 := v1
	v2.Caption = "different"

	a, _ := json.Marshal(v1)
	b, _ := json.Marshal(v2)

	if videoDigest(a) == videoDigest(b) {
		t.Error("differing videos must produce differing digests")
	}
}
