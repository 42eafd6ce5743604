package cmd

import (
	"os"
	"os/signal"

	"github.com/paninifs/panini/pkg/fuse"
)

func registerSIGINTHandlerMount(fs fuse.MountableFS, mountPoint string) {
	// Register for SIGINT.
	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, os.Interrupt)

	// Start a goroutine that will unmount when the signal is received.
	go func() {
		for {
			<-signalChan
			infoLogger.Println("Received SIGINT, attempting to unmount...")

			err := fs.Unmount(mountPoint)
			if err != nil {
				infoLogger.Printf("Failed to unmount in response to SIGINT: %v", err)
			} else {
				infoLogger.Printf("Successfully unmounted in response to SIGINT.")
				return
			}
		}
	}()
}
