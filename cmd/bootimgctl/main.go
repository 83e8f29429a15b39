package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mattn/go-isatty"

	flag "github.com/spf13/pflag"
)

// General command-line interface constants.
const (
	toolVersion = "1.0"
)

func checkMsg(err error, msg string) {
	if err != nil {
		fmt.Printf(" ! Error %s!\n", msg)
		fmt.Printf(" ! %s\n", err.Error())
		os.Exit(2)
	}
}

func main() {
	var inputPath string
	var outputPath string
	var targetType string
	var boardName string
	var cmdline string

	flag.StringVarP(&inputPath, "input", "i", "", "Path to the boot image to convert.")
	flag.StringVarP(&outputPath, "output", "o", "", "Path to write the converted image to.")
	flag.StringVarP(&targetType, "type", "t", "", "Target container type: android, loki, bump, sonyelf.")
	flag.StringVar(&boardName, "board", "", "Override the board name field.")
	flag.StringVar(&cmdline, "cmdline", "", "Override the kernel cmdline field.")

	fmt.Printf("bootimgctl %s\nAndroid-family boot image converter\n\n", toolVersion)

	flag.ErrHelp = errors.New("")
	flag.Parse()

	interactive := isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())
	interactivePath := false

	if inputPath == "" {
		if flag.NArg() > 0 {
			inputPath = flag.Arg(0)
		} else {
			fmt.Println("Usage: bootimgctl {-t type} {-o output} [input]")
			flag.PrintDefaults()
			if interactive {
				defer func() {
					fmt.Print("\n\nPress any key to continue...")
					reader := bufio.NewReader(os.Stdin)
					reader.ReadRune()
				}()

				inputPath = cliGetInputPath()
				interactivePath = true
			} else {
				os.Exit(2)
			}
		}
	}

	if outputPath == "" {
		if flag.NArg() > 1 {
			outputPath = flag.Arg(1)
		} else {
			ext := filepath.Ext(inputPath)
			base := filepath.Base(inputPath)
			dir, _ := filepath.Split(inputPath)

			newName := strings.TrimSuffix(base, ext) + "-converted" + ext
			outputPath = filepath.Join(dir, newName)
		}
	}

	if !interactivePath {
		fInfo, err := os.Stat(inputPath)
		if err != nil {
			if os.IsNotExist(err) {
				fmt.Printf(" ! Input file '%s' does not exist!\n", inputPath)
				fmt.Println(" ! Please provide a boot image and try again.")
			} else {
				checkMsg(err, "verifying file")
			}
			os.Exit(2)
		}

		if fInfo.IsDir() {
			fmt.Println(" ! Input is a directory!")
			fmt.Println(" ! Please provide a boot image file.")
			os.Exit(2)
		}
	}

	convertImage(inputPath, outputPath, targetType, boardName, cmdline)
}
