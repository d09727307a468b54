package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type header struct {
	Key     string  `json:"key"`
	Members int     `json:"members"`
	Width   float64 `json:"width,omitempty"`
}

func TestCodecsInteroperate(t *testing.T) {
	in := header{Key: "LSH_K8_r4.0", Members: 20, Width: 4}
	codecs := []Codec{JSON{}, GoJSON{}}

	for _, enc := range codecs {
		for _, dec := range codecs {
			t.Run(enc.Name()+"/"+dec.Name(), func(t *testing.T) {
				data, err := enc.Marshal(in)
				require.NoError(t, err)

				var out header
				require.NoError(t, dec.Unmarshal(data, &out))
				assert.Equal(t, in, out)
			})
		}
	}
}

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, err := ByName(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.Name())
	}
	_, err := ByName("msgpack")
	assert.Error(t, err)
	assert.Equal(t, "go-json", Default.Name())
}
