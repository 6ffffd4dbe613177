package gen

import (
	"context"
	"encoding/xml"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/qobs-build/qgen/internal/configuration"
	"github.com/qobs-build/qgen/internal/project"
	"go.trai.ch/zerr"
)

//
// structures for .vcxproj
//

type VSProject struct {
	XMLName              xml.Name                `xml:"Project"`
	DefaultTargets       string                  `xml:"DefaultTargets,attr"`
	ToolsVersion         string                  `xml:"ToolsVersion,attr"`
	XMLNS                string                  `xml:"xmlns,attr"`
	ItemGroups           []VSItemGroup           `xml:"ItemGroup"`
	PropertyGroups       []VSPropertyGroup       `xml:"PropertyGroup"`
	ImportGroups         []VSImportGroup         `xml:"ImportGroup"`
	ItemDefinitionGroups []VSItemDefinitionGroup `xml:"ItemDefinitionGroup"`
	Imports              []VSImport              `xml:"Import"`
}

type VSItemGroup struct {
	Label                 string                   `xml:"Label,attr,omitempty"`
	ProjectConfigurations []VSProjectConfiguration `xml:"ProjectConfiguration,omitempty"`
	ClCompiles            []VSClCompile            `xml:"ClCompile,omitempty"`
	ClIncludes            []VSFileItem             `xml:"ClInclude,omitempty"`
	ResourceCompiles      []VSFileItem             `xml:"ResourceCompile,omitempty"`
	Nones                 []VSFileItem             `xml:"None,omitempty"`
	ProjectReferences     []VSProjectReference     `xml:"ProjectReference,omitempty"`
}

type VSProjectConfiguration struct {
	Include       string `xml:"Include,attr"`
	Configuration string `xml:"Configuration"`
	Platform      string `xml:"Platform"`
}

// VSConditional is an element whose value applies under Condition only.
type VSConditional struct {
	Condition string `xml:"Condition,attr"`
	Value     string `xml:",chardata"`
}

type VSClCompile struct {
	Include                      string          `xml:"Include,attr"`
	ExcludedFromBuild            []VSConditional `xml:"ExcludedFromBuild,omitempty"`
	AdditionalIncludeDirectories []VSConditional `xml:"AdditionalIncludeDirectories,omitempty"`
	PreprocessorDefinitions      []VSConditional `xml:"PreprocessorDefinitions,omitempty"`
	AdditionalOptions            []VSConditional `xml:"AdditionalOptions,omitempty"`
}

type VSFileItem struct {
	Include           string          `xml:"Include,attr"`
	ExcludedFromBuild []VSConditional `xml:"ExcludedFromBuild,omitempty"`
}

type VSProjectReference struct {
	Include                 string `xml:"Include,attr"`
	Project                 string `xml:"Project"`
	Name                    string `xml:"Name"`
	LinkLibraryDependencies bool   `xml:"LinkLibraryDependencies"`
}

type VSPropertyGroup struct {
	Label                        string `xml:"Label,attr,omitempty"`
	Condition                    string `xml:"Condition,attr,omitempty"`
	PreferredToolArchitecture    string `xml:"PreferredToolArchitecture,omitempty"`
	ProjectGuid                  string `xml:"ProjectGuid,omitempty"`
	Keyword                      string `xml:"Keyword,omitempty"`
	WindowsTargetPlatformVersion string `xml:"WindowsTargetPlatformVersion,omitempty"`
	ProjectName                  string `xml:"ProjectName,omitempty"`
	ConfigurationType            string `xml:"ConfigurationType,omitempty"`
	PlatformToolset              string `xml:"PlatformToolset,omitempty"`
	CharacterSet                 string `xml:"CharacterSet,omitempty"`
	OutDir                       string `xml:"OutDir,omitempty"`
	IntDir                       string `xml:"IntDir,omitempty"`
	TargetName                   string `xml:"TargetName,omitempty"`
	TargetExt                    string `xml:"TargetExt,omitempty"`
	LinkIncremental              *bool  `xml:"LinkIncremental,omitempty"`
	GenerateManifest             bool   `xml:"GenerateManifest,omitempty"`
	UseDebugLibraries            *bool  `xml:"UseDebugLibraries,omitempty"`
	WholeProgramOptimization     *bool  `xml:"WholeProgramOptimization,omitempty"`
}

type VSImportGroup struct {
	Label   string     `xml:"Label,attr,omitempty"`
	Imports []VSImport `xml:"Import"`
}

type VSImport struct {
	Project   string `xml:"Project,attr"`
	Condition string `xml:"Condition,attr,omitempty"`
	Label     string `xml:"Label,attr,omitempty"`
}

type VSItemDefinitionGroup struct {
	Condition string          `xml:"Condition,attr"`
	ClCompile VSCppCompileDef `xml:"ClCompile"`
	Link      *VSLinkDef      `xml:"Link,omitempty"`
}

type VSCppCompileDef struct {
	WarningLevel                 string `xml:"WarningLevel"`
	TreatWarningAsError          bool   `xml:"TreatWarningAsError,omitempty"`
	SDLCheck                     bool   `xml:"SDLCheck"`
	AdditionalIncludeDirectories string `xml:"AdditionalIncludeDirectories"`
	PreprocessorDefinitions      string `xml:"PreprocessorDefinitions"`
	AdditionalOptions            string `xml:"AdditionalOptions,omitempty"`
	ConformanceMode              bool   `xml:"ConformanceMode"`
	LanguageStandard             string `xml:"LanguageStandard,omitempty"`
	LanguageStandardC            string `xml:"LanguageStandard_C,omitempty"`
	Optimization                 string `xml:"Optimization,omitempty"`
	BasicRuntimeChecks           string `xml:"BasicRuntimeChecks,omitempty"`
	DebugInformationFormat       string `xml:"DebugInformationFormat,omitempty"`
	RuntimeLibrary               string `xml:"RuntimeLibrary,omitempty"`
	FunctionLevelLinking         *bool  `xml:"FunctionLevelLinking,omitempty"`
	IntrinsicFunctions           *bool  `xml:"IntrinsicFunctions,omitempty"`
}

type VSLinkDef struct {
	SubSystem                    string `xml:"SubSystem"`
	GenerateDebugInformation     *bool  `xml:"GenerateDebugInformation,omitempty"`
	AdditionalDependencies       string `xml:"AdditionalDependencies"`
	AdditionalLibraryDirectories string `xml:"AdditionalLibraryDirectories,omitempty"`
	ProgramDataBaseFile          string `xml:"ProgramDataBaseFile,omitempty"`
	AdditionalOptions            string `xml:"AdditionalOptions,omitempty"`
	LinkTimeCodeGeneration       string `xml:"LinkTimeCodeGeneration,omitempty"`
	EnableCOMDATFolding          *bool  `xml:"EnableCOMDATFolding,omitempty"`
	OptimizeReferences           *bool  `xml:"OptimizeReferences,omitempty"`
}

type VSFiltersProject struct {
	XMLName      xml.Name             `xml:"Project"`
	ToolsVersion string               `xml:"ToolsVersion,attr"`
	XMLNS        string               `xml:"xmlns,attr"`
	ItemGroups   []VSFiltersItemGroup `xml:"ItemGroup"`
}

type VSFiltersItemGroup struct {
	ClCompiles       []VSFiltersFile   `xml:"ClCompile,omitempty"`
	ClIncludes       []VSFiltersFile   `xml:"ClInclude,omitempty"`
	ResourceCompiles []VSFiltersFile   `xml:"ResourceCompile,omitempty"`
	Nones            []VSFiltersFile   `xml:"None,omitempty"`
	Filters          []VSFiltersFilter `xml:"Filter,omitempty"`
}

type VSFiltersFile struct {
	Include string `xml:"Include,attr"`
	Filter  string `xml:"Filter,omitempty"`
}

type VSFiltersFilter struct {
	Include          string `xml:"Include,attr"`
	UniqueIdentifier string `xml:"UniqueIdentifier"`
}

//
// generator
//

const (
	msbuildNamespace  = "http://schemas.microsoft.com/developer/msbuild/2003"
	vcxprojTypeGuid   = "8BC9CEB8-8B4A-11D0-8D11-00A0C91BC942"
	solutionDirTypeID = "2150E333-8FDC-42A3-9474-1A3956D46DE8"
)

// guidNamespace seeds name based GUIDs so regenerating yields the same files.
var guidNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("https://github.com/qobs-build/qgen"))

func stableGuid(kind, name string) string {
	return strings.ToUpper(uuid.NewSHA1(guidNamespace, []byte(kind+":"+name)).String())
}

// VS2022Gen writes a Visual Studio 2022 solution with one project per target
// and one project configuration per configuration type.
type VS2022Gen struct {
	settings Settings
	targets  []Target
	guids    map[string]string
}

func NewVS2022Gen(s Settings) *VS2022Gen {
	return &VS2022Gen{settings: s, guids: make(map[string]string)}
}

// SetCompiler is a no-op: msbuild picks the compiler from the platform toolset.
func (g *VS2022Gen) SetCompiler(cc, cxx, ar string, extraFlags []string) {}

func (g *VS2022Gen) BuildFile() string {
	name := g.settings.Name
	if name == "" {
		name = filepath.Base(g.settings.SourceDir)
	}
	return filepath.Join(g.settings.BuildDir, name+".sln")
}

func (g *VS2022Gen) AddTarget(t Target) {
	g.targets = append(g.targets, t)
	id := strings.ToUpper(strings.Trim(t.Project.Id, "{}"))
	if id == "" {
		id = stableGuid("project", t.Project.Name)
	}
	g.guids[t.Project.Name] = id
}

// Platform maps the target architecture onto a Visual Studio platform name.
func Platform(arch configuration.Architecture) string {
	switch arch {
	case configuration.X86:
		return "Win32"
	case configuration.ARM64:
		return "ARM64"
	case configuration.ARMv7a:
		return "ARM"
	default:
		return "x64"
	}
}

func (g *VS2022Gen) platform() string { return Platform(g.settings.Axes.TargetArch) }

func (g *VS2022Gen) condition(ct configuration.ConfigurationType) string {
	return fmt.Sprintf("'$(Configuration)|$(Platform)'=='%s|%s'", ct, g.platform())
}

func (g *VS2022Gen) projectFile(p *project.Project) string {
	switch {
	case p.FilePath == "":
		return filepath.Join(g.settings.BuildDir, p.Name, p.Name+".vcxproj")
	case filepath.IsAbs(p.FilePath):
		return p.FilePath
	default:
		return filepath.Join(g.settings.BuildDir, p.FilePath)
	}
}

// winPath renders path relative to base with backslashes.
func winPath(base, path string) string {
	if rel, err := filepath.Rel(base, path); err == nil {
		path = rel
	}
	return strings.ReplaceAll(filepath.ToSlash(path), "/", `\`)
}

func winDir(path string) string {
	return strings.ReplaceAll(filepath.ToSlash(path), "/", `\`) + `\`
}

func (g *VS2022Gen) Generate() ([]File, error) {
	var files []File
	for _, t := range g.targets {
		projectFiles, err := g.generateProject(t)
		if err != nil {
			return nil, zerr.With(err, "project", t.Project.Name)
		}
		files = append(files, projectFiles...)
	}
	files = append(files, File{Path: g.BuildFile(), Content: []byte(g.generateSolutionFile())})
	return files, nil
}

func (g *VS2022Gen) generateSolutionFile() string {
	s := g.settings
	slnDir := filepath.Dir(g.BuildFile())
	platform := g.platform()
	var sb strings.Builder

	writeln(&sb, "Microsoft Visual Studio Solution File, Format Version 12.00")
	writeln(&sb, "# Visual Studio Version 17")
	for _, t := range g.targets {
		p := t.Project
		writeln(&sb,
			`Project("{`, vcxprojTypeGuid, `}") = "`, p.Name, `", "`, winPath(slnDir, g.projectFile(p)), `", "{`, g.guids[p.Name], `}"`,
		)
		writeln(&sb, "EndProject")
	}

	// solution folders for virtual directories, parents first
	var folders []string
	nested := make(map[string]string) // child guid -> parent guid
	for _, t := range g.targets {
		dir := strings.Trim(filepath.ToSlash(t.Project.VirtualDir), "/")
		if dir == "" {
			continue
		}
		nested[g.guids[t.Project.Name]] = stableGuid("folder", dir)
		parts := strings.Split(dir, "/")
		for i := range parts {
			folder := strings.Join(parts[:i+1], "/")
			if slices.Contains(folders, folder) {
				continue
			}
			folders = append(folders, folder)
			if i > 0 {
				nested[stableGuid("folder", folder)] = stableGuid("folder", strings.Join(parts[:i], "/"))
			}
		}
	}
	for _, folder := range folders {
		name := folder[strings.LastIndex(folder, "/")+1:]
		writeln(&sb, `Project("{`, solutionDirTypeID, `}") = "`, name, `", "`, name, `", "{`, stableGuid("folder", folder), `}"`)
		writeln(&sb, "EndProject")
	}

	writeln(&sb, "Global")
	writeln(&sb, "\tGlobalSection(SolutionConfigurationPlatforms) = preSolution")
	for _, ct := range s.Configurations {
		writeln(&sb, "\t\t", string(ct), "|", platform, " = ", string(ct), "|", platform)
	}
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(ProjectConfigurationPlatforms) = postSolution")
	for _, t := range g.targets {
		guid := g.guids[t.Project.Name]
		for _, ct := range s.Configurations {
			cfg := string(ct) + "|" + platform
			writeln(&sb, "\t\t{", guid, "}.", cfg, ".ActiveCfg = ", cfg)
			writeln(&sb, "\t\t{", guid, "}.", cfg, ".Build.0 = ", cfg)
		}
	}
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "\tGlobalSection(SolutionProperties) = preSolution")
	writeln(&sb, "\t\tHideSolutionNode = FALSE")
	writeln(&sb, "\tEndGlobalSection")
	if len(nested) > 0 {
		writeln(&sb, "\tGlobalSection(NestedProjects) = preSolution")
		children := make([]string, 0, len(nested))
		for child := range nested {
			children = append(children, child)
		}
		slices.Sort(children)
		for _, child := range children {
			writeln(&sb, "\t\t{", child, "} = {", nested[child], "}")
		}
		writeln(&sb, "\tEndGlobalSection")
	}
	writeln(&sb, "\tGlobalSection(ExtensibilityGlobals) = postSolution")
	writeln(&sb, "\t\tSolutionGuid = {", stableGuid("solution", s.Name), "}")
	writeln(&sb, "\tEndGlobalSection")
	writeln(&sb, "EndGlobal")

	return sb.String()
}

// vsFile is a project file with the configuration types it is part of.
type vsFile struct {
	file configuration.File
	in   map[configuration.ConfigurationType]bool
}

// filesByConfiguration unions the files of p over every configuration type,
// in first seen order.
func (g *VS2022Gen) filesByConfiguration(p *project.Project) []*vsFile {
	var out []*vsFile
	index := make(map[string]*vsFile)
	for _, ct := range g.settings.Configurations {
		for _, f := range p.FilesAt(g.settings.AxesFor(ct)) {
			vf, ok := index[f.Path]
			if !ok {
				vf = &vsFile{file: f, in: make(map[configuration.ConfigurationType]bool)}
				index[f.Path] = vf
				out = append(out, vf)
			}
			vf.in[ct] = true
		}
	}
	return out
}

func (g *VS2022Gen) generateProject(t Target) ([]File, error) {
	s := g.settings
	p := t.Project
	projectPath := g.projectFile(p)
	projectDir := filepath.Dir(projectPath)
	platform := g.platform()

	var configs []VSProjectConfiguration
	for _, ct := range s.Configurations {
		configs = append(configs, VSProjectConfiguration{Include: string(ct) + "|" + platform, Configuration: string(ct), Platform: platform})
	}

	sources := VSItemGroup{}
	for _, vf := range g.filesByConfiguration(p) {
		include := winPath(projectDir, vf.file.Path)
		var excluded []VSConditional
		for _, ct := range s.Configurations {
			if !vf.in[ct] {
				excluded = append(excluded, VSConditional{Condition: g.condition(ct), Value: "true"})
			}
		}

		switch {
		case vf.file.Type.IsSource():
			item := VSClCompile{Include: include, ExcludedFromBuild: excluded}
			for _, ct := range s.Configurations {
				if vf.in[ct] {
					g.addFileSettings(&item, p, vf.file, ct)
				}
			}
			sources.ClCompiles = append(sources.ClCompiles, item)
		case vf.file.Type == configuration.FileHeader:
			sources.ClIncludes = append(sources.ClIncludes, VSFileItem{Include: include})
		case vf.file.Type == configuration.FileResource:
			sources.ResourceCompiles = append(sources.ResourceCompiles, VSFileItem{Include: include, ExcludedFromBuild: excluded})
		default:
			sources.Nones = append(sources.Nones, VSFileItem{Include: include})
		}
	}

	var refs []VSProjectReference
	for _, ref := range t.References {
		refs = append(refs, VSProjectReference{
			Include:                 winPath(projectDir, g.projectFile(ref.Project)),
			Project:                 "{" + g.guids[ref.Project.Name] + "}",
			Name:                    ref.Project.Name,
			LinkLibraryDependencies: true,
		})
	}

	itemGroups := []VSItemGroup{{Label: "ProjectConfigurations", ProjectConfigurations: configs}, sources}
	if len(refs) > 0 {
		itemGroups = append(itemGroups, VSItemGroup{ProjectReferences: refs})
	}

	propertyGroups := []VSPropertyGroup{
		{PreferredToolArchitecture: "x64"},
		{
			Label:                        "Globals",
			ProjectGuid:                  "{" + g.guids[p.Name] + "}",
			Keyword:                      "Win32Proj",
			WindowsTargetPlatformVersion: "10.0",
			ProjectName:                  p.Name,
		},
	}
	propertyGroups = append(propertyGroups, g.createConfigurationPropertyGroups(p, projectDir)...)

	vcxproj := VSProject{
		DefaultTargets:       "Build",
		ToolsVersion:         "17.0",
		XMLNS:                msbuildNamespace,
		ItemGroups:           itemGroups,
		PropertyGroups:       propertyGroups,
		ItemDefinitionGroups: g.createItemDefinitionGroups(t),
		Imports: []VSImport{
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.Default.props`},
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.props`},
			{Project: `$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props`, Condition: `exists('$(UserRootDir)\Microsoft.Cpp.$(Platform).user.props')`, Label: "LocalAppDataPlatform"},
			{Project: `$(VCTargetsPath)\Microsoft.Cpp.targets`},
		},
		ImportGroups: []VSImportGroup{{Label: "ExtensionTargets"}},
	}

	body, err := xml.MarshalIndent(vcxproj, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to render project")
	}
	filters, err := g.generateFiltersFile(p, projectDir, sources)
	if err != nil {
		return nil, err
	}

	return []File{
		{Path: projectPath, Content: []byte(xml.Header + string(body))},
		{Path: projectPath + ".filters", Content: filters},
	}, nil
}

// addFileSettings adds what the file's own fragments contribute at ct, plus
// the language specific flags that item definitions cannot express.
func (g *VS2022Gen) addFileSettings(item *VSClCompile, p *project.Project, f configuration.File, ct configuration.ConfigurationType) {
	a := g.settings.AxesFor(ct)
	a.TargetType = p.TargetTypeAt(a)
	cond := g.condition(ct)
	own := configuration.Merged(f.Configurations, a)
	full := p.FileConfiguration(f, a)

	if dirs := append(slices.Clone(own.IncludeDirectories), own.SystemIncludeDirectories...); len(dirs) > 0 {
		item.AdditionalIncludeDirectories = append(item.AdditionalIncludeDirectories,
			VSConditional{Condition: cond, Value: strings.Join(dirs, ";") + ";%(AdditionalIncludeDirectories)"})
	}
	if len(own.Defines) > 0 {
		item.PreprocessorDefinitions = append(item.PreprocessorDefinitions,
			VSConditional{Condition: cond, Value: joinDefines(own.Defines) + ";%(PreprocessorDefinitions)"})
	}

	options := slices.Clone(own.CommonFlags)
	if f.Type.IsCxx() {
		options = append(options, full.CppFlags...)
	} else {
		options = append(options, full.CFlags...)
	}
	if len(options) > 0 {
		item.AdditionalOptions = append(item.AdditionalOptions,
			VSConditional{Condition: cond, Value: "%(AdditionalOptions) " + strings.Join(options, " ")})
	}
}

func joinDefines(defines []configuration.Define) string {
	out := make([]string, len(defines))
	for i, d := range defines {
		out[i] = d.String()
	}
	return strings.Join(out, ";")
}

func vsConfigurationType(tt configuration.TargetType) string {
	switch tt {
	case configuration.StaticLibrary:
		return "StaticLibrary"
	case configuration.DynamicLibrary:
		return "DynamicLibrary"
	case configuration.HeaderOnly:
		return "Utility"
	default:
		return "Application"
	}
}

func (g *VS2022Gen) platformToolset() string {
	if g.settings.Axes.Compiler == configuration.ClangCl {
		return "ClangCL"
	}
	return "v143"
}

func (g *VS2022Gen) createConfigurationPropertyGroups(p *project.Project, projectDir string) []VSPropertyGroup {
	s := g.settings
	var groups []VSPropertyGroup
	for _, ct := range s.Configurations {
		a := s.AxesFor(ct)
		debug := ct == configuration.Debug
		group := VSPropertyGroup{
			Condition:         g.condition(ct),
			Label:             "Configuration",
			ConfigurationType: vsConfigurationType(p.TargetTypeAt(a)),
			PlatformToolset:   g.platformToolset(),
			CharacterSet:      "Unicode",
			UseDebugLibraries: &debug,
		}
		if s.LinkTimeOpt {
			lto := true
			group.WholeProgramOptimization = &lto
		}
		groups = append(groups, group)
	}
	for _, ct := range s.Configurations {
		a := s.AxesFor(ct)
		incremental := ct == configuration.Debug
		group := VSPropertyGroup{
			Condition:        g.condition(ct),
			IntDir:           winDir(filepath.Join(projectDir, "obj", string(ct))),
			TargetName:       p.ArtifactName(),
			LinkIncremental:  &incremental,
			GenerateManifest: true,
		}
		if out := p.OutputFile(a, s.BuildDir); out != "" {
			group.OutDir = winDir(filepath.Dir(out))
			group.TargetExt = filepath.Ext(out)
		}
		groups = append(groups, group)
	}
	return groups
}

func runtimeLibrary(lib configuration.CLibrary, debug bool) string {
	name := "MultiThreaded"
	if debug {
		name += "Debug"
	}
	if lib.Form != configuration.Static {
		name += "DLL"
	}
	return name
}

func languageStandard(prefix, std string) string {
	if std == "" {
		return ""
	}
	return prefix + std
}

func (g *VS2022Gen) createItemDefinitionGroups(t Target) []VSItemDefinitionGroup {
	s := g.settings
	p := t.Project
	trueVal, falseVal := true, false

	var groups []VSItemDefinitionGroup
	for _, ct := range s.Configurations {
		a := s.AxesFor(ct)
		merged := p.Merged(a)
		debug := ct == configuration.Debug

		defines := []string{"WIN32", "_WINDOWS"}
		if debug {
			defines = append(defines, "_DEBUG")
		} else {
			defines = append(defines, "NDEBUG")
		}
		if len(merged.Defines) > 0 {
			defines = append(defines, joinDefines(merged.Defines))
		}
		includes := append(slices.Clone(merged.IncludeDirectories), merged.SystemIncludeDirectories...)

		compile := VSCppCompileDef{
			WarningLevel:                 "Level3",
			SDLCheck:                     true,
			AdditionalIncludeDirectories: strings.Join(append(includes, "%(AdditionalIncludeDirectories)"), ";"),
			PreprocessorDefinitions:      strings.Join(append(defines, "%(PreprocessorDefinitions)"), ";"),
			ConformanceMode:              true,
			LanguageStandard:             languageStandard("stdcpp", merged.Options[OptionCppStandard]),
			LanguageStandardC:            languageStandard("stdc", merged.Options[OptionCStandard]),
			RuntimeLibrary:               runtimeLibrary(s.Axes.CLibrary, debug),
		}
		switch merged.Options[OptionWarnings] {
		case "extra":
			compile.WarningLevel = "Level4"
		case "error":
			compile.TreatWarningAsError = true
		case "none":
			compile.WarningLevel = "TurnOffAllWarnings"
		}
		if len(merged.CommonFlags) > 0 {
			compile.AdditionalOptions = "%(AdditionalOptions) " + strings.Join(merged.CommonFlags, " ")
		}
		if debug {
			compile.Optimization = "Disabled"
			compile.BasicRuntimeChecks = "EnableFastChecks"
			compile.DebugInformationFormat = "ProgramDatabase"
		} else {
			compile.Optimization = "MaxSpeed"
			compile.FunctionLevelLinking = &trueVal
			compile.IntrinsicFunctions = &trueVal
		}

		group := VSItemDefinitionGroup{Condition: g.condition(ct), ClCompile: compile}

		tt := p.TargetTypeAt(a)
		if tt == configuration.Executable || tt == configuration.DynamicLibrary {
			_, depDirs, depLibs := linkInputs(t, a, s.BuildDir)
			var libs []string
			for _, lib := range append(slices.Clone(merged.Libs), depLibs...) {
				if filepath.Ext(lib) == "" {
					lib += ".lib"
				}
				libs = append(libs, lib)
			}
			link := &VSLinkDef{
				SubSystem:                    "Console",
				AdditionalDependencies:       strings.Join(append(libs, "%(AdditionalDependencies)"), ";"),
				AdditionalLibraryDirectories: strings.Join(append(slices.Clone(merged.LibDirectories), depDirs...), ";"),
				ProgramDataBaseFile:          `$(OutDir)$(TargetName).pdb`,
				AdditionalOptions:            strings.TrimSpace("%(AdditionalOptions) " + strings.Join(append(slices.Clone(merged.LinkerFlags), merged.PostLinkerFlags...), " ")),
			}
			if debug {
				link.GenerateDebugInformation = &trueVal
			} else {
				link.GenerateDebugInformation = &falseVal
				link.EnableCOMDATFolding = &trueVal
				link.OptimizeReferences = &trueVal
			}
			if s.LinkTimeOpt {
				link.LinkTimeCodeGeneration = "UseLinkTimeCodeGeneration"
			}
			group.Link = link
		}
		groups = append(groups, group)
	}
	return groups
}

func (g *VS2022Gen) generateFiltersFile(p *project.Project, projectDir string, items VSItemGroup) ([]byte, error) {
	var filters []VSFiltersFilter
	seen := make(map[string]bool)

	filterOf := func(include string) string {
		path := filepath.Join(projectDir, filepath.FromSlash(strings.ReplaceAll(include, `\`, "/")))
		rel, err := filepath.Rel(p.Directory, filepath.Dir(path))
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			return ""
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")
		for i := range parts {
			name := strings.Join(parts[:i+1], `\`)
			if !seen[name] {
				seen[name] = true
				filters = append(filters, VSFiltersFilter{Include: name, UniqueIdentifier: "{" + stableGuid("filter:"+p.Name, name) + "}"})
			}
		}
		return strings.Join(parts, `\`)
	}

	var group VSFiltersItemGroup
	for _, f := range items.ClCompiles {
		group.ClCompiles = append(group.ClCompiles, VSFiltersFile{Include: f.Include, Filter: filterOf(f.Include)})
	}
	for _, f := range items.ClIncludes {
		group.ClIncludes = append(group.ClIncludes, VSFiltersFile{Include: f.Include, Filter: filterOf(f.Include)})
	}
	for _, f := range items.ResourceCompiles {
		group.ResourceCompiles = append(group.ResourceCompiles, VSFiltersFile{Include: f.Include, Filter: filterOf(f.Include)})
	}
	for _, f := range items.Nones {
		group.Nones = append(group.Nones, VSFiltersFile{Include: f.Include, Filter: filterOf(f.Include)})
	}

	doc := VSFiltersProject{
		ToolsVersion: "17.0",
		XMLNS:        msbuildNamespace,
		ItemGroups:   []VSFiltersItemGroup{group, {Filters: filters}},
	}
	output, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, zerr.Wrap(err, "failed to render filters")
	}
	return []byte(xml.Header + string(output)), nil
}

// FindMsbuild looks for msbuild on PATH, then asks vswhere for the newest
// installation that has it.
func FindMsbuild() (string, error) {
	if path, err := exec.LookPath("msbuild"); err == nil {
		return path, nil
	}

	vswhere := filepath.Join(os.Getenv("ProgramFiles(x86)"), "Microsoft Visual Studio", "Installer", "vswhere.exe")
	out, err := exec.Command(vswhere, "-latest", "-requires", "Microsoft.Component.MSBuild", "-find", `MSBuild\**\Bin\MSBuild.exe`).Output()
	if err == nil {
		if line, _, _ := strings.Cut(strings.TrimSpace(string(out)), "\n"); line != "" {
			return strings.TrimSpace(line), nil
		}
	}
	return "", zerr.With(zerr.Wrap(ErrExternalExecution, "msbuild not found"), "command", "msbuild")
}

func (g *VS2022Gen) Invoke(ctx context.Context) error {
	msbuild, err := FindMsbuild()
	if err != nil {
		return err
	}

	for _, ct := range g.settings.Configurations {
		args := []string{
			g.BuildFile(),
			"/p:Configuration=" + string(ct),
			"/p:Platform=" + g.platform(),
		}
		if g.settings.Jobs > 0 {
			args = append(args, "/m:"+strconv.Itoa(g.settings.Jobs))
		}
		if err := run(ctx, g.settings.BuildDir, msbuild, args...); err != nil {
			return err
		}
	}
	return nil
}
