package utils_test

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/temirov/deployutils/internal/utils"
)

type recordingWriter struct {
	writes []string
}

func (writer *recordingWriter) Write(data []byte) (int, error) {
	writer.writes = append(writer.writes, string(data))
	return len(data), nil
}

func TestFlushingWriterForwardsCompleteLines(testInstance *testing.T) {
	destination := &recordingWriter{}
	writer := utils.NewFlushingWriter(destination)

	_, writeError := writer.Write([]byte("##teamcity[progressMessage 'waiting"))
	require.NoError(testInstance, writeError)
	require.Empty(testInstance, destination.writes)

	_, writeError = writer.Write([]byte(" for web1']\n##teamcity[blockOpened name='deploy']\npartial"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, []string{"##teamcity[progressMessage 'waiting for web1']\n##teamcity[blockOpened name='deploy']\n"}, destination.writes)

	require.NoError(testInstance, writer.Flush())
	require.Equal(testInstance, "partial", destination.writes[1])

	require.NoError(testInstance, writer.Flush())
	require.Len(testInstance, destination.writes, 2)
}

func TestFlushingWriterFlushesBufferedDestination(testInstance *testing.T) {
	outputBuffer := &bytes.Buffer{}
	bufferedWriter := bufio.NewWriter(outputBuffer)
	writer := utils.NewFlushingWriter(bufferedWriter)

	_, writeError := writer.Write([]byte("restarted web\n"))
	require.NoError(testInstance, writeError)
	require.Equal(testInstance, "restarted web\n", outputBuffer.String())
}

func TestNewFlushingWriterDoesNotWrapTwice(testInstance *testing.T) {
	writer := utils.NewFlushingWriter(&bytes.Buffer{})
	require.Same(testInstance, writer, utils.NewFlushingWriter(writer))
}
