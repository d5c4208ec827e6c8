package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/binzume/vrmconv/converter"
	"github.com/binzume/vrmconv/vrm"
	"github.com/sirupsen/logrus"
)

var log = logrus.New()

func defaultOutputFile(input string, version vrm.Version) string {
	ext := strings.ToLower(filepath.Ext(input))
	base := input[0 : len(input)-len(ext)]
	if ext == ".vmd" {
		return base + ".vrma"
	} else if ext == ".vrm" {
		if version == vrm.Version1 {
			return base + "_vrm1.vrm"
		}
		return base + "_vrm0.vrm"
	}
	return base + ".vrm"
}

func parseVersion(s string) (vrm.Version, error) {
	switch s {
	case "", "0", "0.x":
		return vrm.Version0, nil
	case "1", "1.0":
		return vrm.Version1, nil
	}
	return vrm.VersionNone, fmt.Errorf("unknown VRM version: %v", s)
}

var commands = map[string]bool{
	"info": true, "rip": true, "convert": true, "glb2vrm": true, "vmd2vrma": true, "vrma-info": true,
}

// commandOf guesses the command from the input extension.
func commandOf(input string) string {
	switch strings.ToLower(filepath.Ext(input)) {
	case ".vmd":
		return "vmd2vrma"
	case ".vrm":
		return "convert"
	case ".glb", ".gltf":
		return "glb2vrm"
	case ".vrma":
		return "vrma-info"
	}
	return ""
}

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [options] [command] input [output]\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands: info, rip, convert, glb2vrm, vmd2vrma, vrma-info\n")
		flag.PrintDefaults()
	}
	version := flag.String("version", "0", "output VRM version (0 or 1)")
	scale := flag.Float64("scale", 0, "scale applied to .glb input (0: none)")
	vrmconf := flag.String("vrmconfig", "", "config file for VRM")
	model := flag.String("model", "", "reference .vrm for the rest pose of .vmd conversion")
	mmdScale := flag.Float64("mmdscale", converter.DefaultMMDScale, "meters per MMD unit")
	armAngle := flag.Float64("armangle", converter.DefaultArmAngle, "arm slope of the MMD rest pose in degrees")
	noArm := flag.Bool("noarmcorrection", false, "keep MMD arm rotations as they are")
	customExp := flag.Bool("customexpressions", false, "keep morphs without a VRM preset")
	acceptLicense := flag.Bool("acceptlicense", false, "accept restrictive VRM 0.x licenses")
	verbose := flag.Bool("v", false, "verbose log")
	flag.Parse()

	if *verbose {
		log.SetLevel(logrus.DebugLevel)
	}
	args := flag.Args()
	command := ""
	if len(args) > 0 && commands[args[0]] {
		command, args = args[0], args[1:]
	}
	if len(args) == 0 {
		flag.Usage()
		return
	}
	ver, err := parseVersion(*version)
	if err != nil {
		log.Fatal(err)
	}

	input := args[0]
	if command == "" {
		command = commandOf(input)
	}
	output := ""
	if len(args) > 1 {
		output = args[1]
	} else if command == "rip" {
		output = input[0:len(input)-len(filepath.Ext(input))] + "_textures"
	} else {
		output = defaultOutputFile(input, ver)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch command {
	case "info":
		err = printInfo(ctx, input, *acceptLicense)
		output = ""
	case "vrma-info":
		err = printAnimationInfo(input)
		output = ""
	case "rip":
		err = ripTextures(input, output, *acceptLicense)
	case "vmd2vrma":
		opt := &converter.VMDOptions{
			Logger:            log,
			Scale:             float32(*mmdScale),
			ArmAngle:          *armAngle,
			NoArmCorrection:   *noArm,
			CustomExpressions: *customExp,
		}
		if *model != "" {
			if opt.Reference, err = loadAvatar(*model, *acceptLicense); err != nil {
				log.Fatal(err)
			}
		}
		err = converter.VMDToVRMA(input, output, opt)
	case "convert":
		err = convertVRM(ctx, input, output, ver, *acceptLicense)
	case "glb2vrm":
		confFile := *vrmconf
		if confFile == "" {
			confFile = input[0:len(input)-len(filepath.Ext(input))] + ".vrmconfig.json"
			if _, err := os.Stat(confFile); err != nil {
				confFile = ""
			}
		}
		err = glb2vrm(ctx, input, output, confFile, ver, float32(*scale))
	default:
		err = fmt.Errorf("unsupported input type: %v", filepath.Ext(input))
	}
	if err != nil {
		log.Fatal(err)
	}
	if output != "" {
		log.Print("out: ", output)
	}
}
