// Package audio provides background music playback for the daemon.
// It uses the beep library to stream WAV, OGG and MP3 files from a
// playlist directory, with volume control and automatic advance to the
// next track.
package audio
