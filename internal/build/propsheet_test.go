package build_test

import (
	"encoding/xml"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/asterism-build/asterism/internal/build"
	"github.com/google/go-cmp/cmp"
)

type tProp struct {
	XMLName xml.Name
	Value   string `xml:",chardata"`
}

type tPropertyGroup struct {
	Label string  `xml:"Label,attr"`
	Props []tProp `xml:",any"`
}

type tItemDefs struct {
	Condition string `xml:"Condition,attr"`
	Deps      string `xml:"Link>AdditionalDependencies"`
	LibDirs   string `xml:"Link>AdditionalLibraryDirectories"`
	Includes  string `xml:"ClCompile>AdditionalIncludeDirectories"`
}

type tBuildMacro struct {
	Include string `xml:"Include,attr"`
	Value   string `xml:"Value"`
}

type tImportGroup struct {
	Label string `xml:"Label,attr"`
}

type tSheet struct {
	XMLName        xml.Name
	ToolsVersion   string           `xml:"ToolsVersion,attr"`
	ImportGroup    tImportGroup     `xml:"ImportGroup"`
	PropertyGroups []tPropertyGroup `xml:"PropertyGroup"`
	ItemDefs       []tItemDefs      `xml:"ItemDefinitionGroup"`
	Macros         []tBuildMacro    `xml:"ItemGroup>BuildMacro"`
}

func TestPropertySheet(t *testing.T) {
	t.Parallel()
	sheet := build.NewPropertySheet([]build.Configuration{debug64, release64})
	sheet.AddUserMacro(build.ArtifactsDirMacro, `$(SolutionDir)..\.asterism\artifacts\`)
	sheet.AddIncludeDirectory(debug64, `$(AsterismArtifactsDir)x64\Debug\include\`)
	sheet.AddLibraryDirectory(debug64, `$(AsterismArtifactsDir)x64\Debug\lib\`)
	sheet.AddDependencies(debug64, "math.lib", "engine.lib")

	path := filepath.Join(t.TempDir(), ".asterism", "vsprops", "Asterism.props")
	if err := sheet.Save(path); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(string(data), xml.Header) {
		t.Errorf("missing XML declaration:\n%s", data)
	}
	var got tSheet
	if err := xml.Unmarshal(data, &got); err != nil {
		t.Fatalf("saved sheet does not parse: %v\n%s", err, data)
	}
	want := tSheet{
		XMLName:      xml.Name{Space: "http://schemas.microsoft.com/developer/msbuild/2003", Local: "Project"},
		ToolsVersion: "4.0",
		ImportGroup:  tImportGroup{Label: "PropertySheets"},
		PropertyGroups: []tPropertyGroup{
			{Label: "UserMacros", Props: []tProp{{
				XMLName: xml.Name{Space: "http://schemas.microsoft.com/developer/msbuild/2003", Local: "AsterismArtifactsDir"},
				Value:   `$(SolutionDir)..\.asterism\artifacts\`,
			}}},
			{},
		},
		ItemDefs: []tItemDefs{
			{
				Condition: "'$(Configuration)|$(Platform)'=='Debug|x64'",
				Deps:      "math.lib;engine.lib;%(AdditionalDependencies)",
				LibDirs:   `$(AsterismArtifactsDir)x64\Debug\lib\;%(AdditionalLibraryDirectories)`,
				Includes:  `$(AsterismArtifactsDir)x64\Debug\include\;%(AdditionalIncludeDirectories)`,
			},
			{Condition: "'$(Configuration)|$(Platform)'=='Release|x64'"},
		},
		Macros: []tBuildMacro{{Include: "AsterismArtifactsDir", Value: "$(AsterismArtifactsDir)"}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("saved sheet differs (-want +got):\n%s\n%s", diff, data)
	}
}

func TestWindowsDir(t *testing.T) {
	t.Parallel()
	for _, tc := range []struct {
		parts []string
		want  string
	}{
		{[]string{filepath.Join("..", ".asterism", "artifacts")}, `..\.asterism\artifacts\`},
		{[]string{"x64", "Debug", "include"}, `x64\Debug\include\`},
		{[]string{"."}, ""},
		{nil, ""},
	} {
		if got := build.WindowsDir(tc.parts...); got != tc.want {
			t.Errorf("WindowsDir(%q) = %q, want %q", tc.parts, got, tc.want)
		}
	}
}
