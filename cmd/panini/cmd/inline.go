package cmd

import (
	"io"
	"io/ioutil"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paninifs/panini/pkg/cafs/inline"
)

var inlineCmd = &cobra.Command{
	Use:   "inline",
	Short: "Convert binary content to and from its inline text form",
	Long: `Convert binary content to and from its inline text form.

Printable ASCII is kept as is, other bytes are escaped with a tilde. Use "-" to read from stdin.`,
}

func readInput(cmd *cobra.Command, name string) ([]byte, error) {
	if name == "-" {
		return ioutil.ReadAll(cmd.InOrStdin())
	}
	return ioutil.ReadFile(name)
}

func output(cmd *cobra.Command) (io.Writer, func() error, error) {
	if paniniFlags.inline.Out == "" {
		return cmd.OutOrStdout(), func() error { return nil }, nil
	}
	f, err := os.Create(paniniFlags.inline.Out)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}

var inlineEncodeCmd = &cobra.Command{
	Use:   "encode <file>",
	Short: "Encode a file as inline text",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		data, err := readInput(cmd, args[0])
		if err != nil {
			wrapFatalln("read input", err)
			return
		}
		out, done, err := output(cmd)
		if err != nil {
			wrapFatalln("create output", err)
			return
		}
		if paniniFlags.inline.Width > 0 {
			err = inline.EncodeLines(out, data, paniniFlags.inline.Width)
		} else {
			_, err = io.WriteString(out, inline.Encode(data)+"\n")
		}
		if err != nil {
			_ = done()
			wrapFatalln("write encoded text", err)
			return
		}
		if err = done(); err != nil {
			wrapFatalln("close output", err)
		}
	},
}

var inlineDecodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode inline text back to the original content",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		text, err := readInput(cmd, args[0])
		if err != nil {
			wrapFatalln("read input", err)
			return
		}
		data, err := inline.Decode(strings.TrimRight(string(text), "\r\n"))
		if err != nil {
			wrapFatalln("decode inline text", err)
			return
		}
		out, done, err := output(cmd)
		if err != nil {
			wrapFatalln("create output", err)
			return
		}
		if _, err = out.Write(data); err != nil {
			_ = done()
			wrapFatalln("write decoded content", err)
			return
		}
		if err = done(); err != nil {
			wrapFatalln("close output", err)
		}
	},
}

func init() {
	addInlineWidthFlag(inlineEncodeCmd)
	addInlineOutFlag(inlineEncodeCmd)
	addInlineOutFlag(inlineDecodeCmd)

	inlineCmd.AddCommand(inlineEncodeCmd)
	inlineCmd.AddCommand(inlineDecodeCmd)
	rootCmd.AddCommand(inlineCmd)
}
