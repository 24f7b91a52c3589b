package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalize(t *testing.T) {
	assert.Equal(t, "airhorn", normalize("Air-Horn!"))
	assert.Equal(t, "sadtrombone2", normalize("Sad Trombone 2"))
	assert.Equal(t, "", normalize("!!! ???"))
}
