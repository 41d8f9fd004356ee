package main

import "github.com/ValentinKolb/statsinit/cmd"

func main() {
	cmd.Execute()
}
