// Package vad implements the optional speech gate that suppresses
// inference on windows judged to contain no speech.
package vad
