package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// readLine prompts on stderr and reads one line from stdin. No
// ecosystem TTY-password library shows up anywhere in the retrieval
// corpus, so a plain bufio.Scanner is the whole of this concern —
// echoed input is an accepted tradeoff for a CLI this small.
func readLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	scanner := bufio.NewScanner(os.Stdin)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", err
		}
		return "", fmt.Errorf("no input")
	}
	return strings.TrimSpace(scanner.Text()), nil
}

func promptPassphrase(keyID []byte) ([]byte, error) {
	line, err := readLine(fmt.Sprintf("passphrase for %s: ", string(keyID)))
	if err != nil {
		return nil, err
	}
	return []byte(line), nil
}
