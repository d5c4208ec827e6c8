package main

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/binzume/vrmconv/avatar"
	"github.com/binzume/vrmconv/converter"
	"github.com/binzume/vrmconv/exporter"
	"github.com/binzume/vrmconv/importer"
	"github.com/binzume/vrmconv/preview"
	"github.com/binzume/vrmconv/texture"
	"github.com/binzume/vrmconv/vrm"
	"github.com/binzume/vrmconv/vrma"
	"github.com/binzume/vrmconv/vrmerr"
)

func loadAvatar(input string, acceptLicense bool) (*avatar.Avatar, error) {
	av, warn, err := importer.ImportFile(input, &importer.Options{
		Logger:           log,
		LicenseConfirmed: acceptLicense,
	})
	if err != nil {
		return nil, err
	}
	if warn.Len() > 0 {
		log.Printf("%v warnings", warn.Len())
	}
	return av, nil
}

func glb2vrm(ctx context.Context, input, output, confFile string, version vrm.Version, scale float32) error {
	if confFile != "" {
		log.Print("vrmconfig: ", confFile)
	}
	warn, err := converter.GLBToVRMFile(input, output, confFile, &converter.GLBOptions{
		Logger:  log,
		Context: ctx,
		Version: version,
		Scale:   scale,
	})
	if warn != nil && warn.Len() > 0 {
		log.Printf("%v warnings", warn.Len())
	}
	return err
}

func convertVRM(ctx context.Context, input, output string, version vrm.Version, acceptLicense bool) error {
	av, err := loadAvatar(input, acceptLicense)
	if err != nil {
		return err
	}
	log.Printf("VRM %v -> %v", av.Version, version)
	warn, err := exporter.ExportFile(output, exporter.SceneFromAvatar(av), &exporter.Options{
		Version: version,
		Logger:  log,
		Context: ctx,
	})
	if warn != nil && warn.Len() > 0 {
		log.Printf("%v warnings", warn.Len())
	}
	return err
}

func ripTextures(input, dir string, acceptLicense bool) error {
	av, warn, err := importer.ImportFile(input, &importer.Options{
		Logger:           log,
		ImageSink:        &texture.DirSink{Dir: dir},
		ExtractTextures:  true,
		LicenseConfirmed: acceptLicense,
	})
	if err != nil {
		return err
	}
	if warn.Has(vrmerr.ImageWriteCollision) {
		log.Warn("some images were not written")
	}
	log.Printf("%v images -> %v", len(av.Images), dir)
	return nil
}

func printInfo(ctx context.Context, input string, acceptLicense bool) error {
	av, err := loadAvatar(input, acceptLicense)
	if err != nil {
		return err
	}
	fmt.Println("Version:", av.Version)
	fmt.Println("Generator:", av.Generator)
	fmt.Println("Name:", av.Meta.Name)
	fmt.Println("Authors:", strings.Join(av.Meta.Authors, ", "))
	fmt.Println("License:", av.Meta.LicenseName, av.Meta.LicenseURL)

	var bones []string
	for name := range av.Humanoid.Bones {
		bones = append(bones, name)
	}
	sort.Strings(bones)
	fmt.Printf("Bones: %d\n", len(bones))
	for _, name := range bones {
		fmt.Printf("  %s: %s\n", name, av.Nodes[av.Humanoid.Bones[name]].Name)
	}

	fmt.Printf("Expressions: %d\n", len(av.Expressions))
	for _, x := range av.Expressions {
		preset := x.Preset
		if preset == "" {
			preset = "custom"
		}
		fmt.Printf("  %s (%s) morphs:%d\n", x.Name, preset, len(x.MorphBinds))
	}

	prims, err := preview.Build(ctx, av, &preview.Options{Logger: log})
	if err != nil {
		return err
	}
	vertices, triangles := 0, 0
	for _, p := range prims {
		vertices += p.VertexCount()
		triangles += len(p.Indices) / 3
	}
	fmt.Printf("Meshes: %d Primitives: %d Vertices: %d Triangles: %d\n", len(av.Meshes), len(prims), vertices, triangles)
	fmt.Printf("Materials: %d Textures: %d Images: %d\n", len(av.Materials), len(av.Textures), len(av.Images))
	return nil
}

func printAnimationInfo(input string) error {
	a, err := vrma.ReadFile(input)
	if err != nil {
		return err
	}
	fmt.Println("Name:", a.Name)
	fmt.Printf("Duration: %.3fs\n", a.Duration())
	fmt.Printf("Nodes: %d Bones: %d Rotations: %d Translations: %d\n",
		len(a.Nodes), len(a.HumanBones), len(a.Rotations), len(a.Translations))
	for _, x := range a.Expressions {
		fmt.Printf("  %s preset:%v keys:%d\n", x.Name, x.Preset, len(x.Times))
	}
	return nil
}
