// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package convert

// TransformFunc rewrites a chunk in place. It must be a pure byte-wise
// function so that chunk boundaries do not change the output.
type TransformFunc func(chunk []byte)

// Complement flips every bit of every byte. It is a stand-in for a real
// codec and is its own inverse.
func Complement(chunk []byte) {
	for i := range chunk {
		chunk[i] = ^chunk[i]
	}
}
