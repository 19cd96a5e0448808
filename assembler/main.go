package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/xiaobogaga/moonc/moon"
)

// a simple program accepts a moon assembly file, assembles it and runs it on the moon machine. getint
// reads from the input file, or stdin when none is given, and putint/putstr write to stdout.

var (
	inputPath  = flag.String("i", "./input.moon", "the input moon assembly file path")
	dataPath   = flag.String("input", "", "the file getint reads from, stdin by default")
	memorySize = flag.Int("mem", moon.DefaultMemorySize, "the data memory size in bytes")
	maxSteps   = flag.Int("steps", moon.DefaultMaxSteps, "stop after that many instructions")
	verbose    = flag.Bool("v", false, "whether print the assembled program and the executed step count")
)

func main() {
	flag.Parse()
	f, err := os.Open(*inputPath)
	if err != nil {
		panic(fmt.Sprintf("failed to open file: %s, err: %v", *inputPath, err))
	}
	defer f.Close()
	program, err := moon.Assemble(f)
	if err != nil {
		panic(fmt.Sprintf("failed to assemble file, err: %v", err))
	}
	if *verbose {
		fmt.Print(program.String())
	}
	var in io.Reader = os.Stdin
	if *dataPath != "" {
		data, err := os.Open(*dataPath)
		if err != nil {
			panic(fmt.Sprintf("failed to open file: %s, err: %v", *dataPath, err))
		}
		defer data.Close()
		in = data
	}
	m, err := moon.NewMachine(program, *memorySize, in, os.Stdout)
	if err != nil {
		panic(fmt.Sprintf("failed to load program, err: %v", err))
	}
	m.MaxSteps = *maxSteps
	if err = m.Run(); err != nil {
		panic(fmt.Sprintf("failed to run program, err: %v", err))
	}
	if *verbose {
		fmt.Printf("\n[Moon]: halted after %d steps\n", m.Steps())
	}
}
