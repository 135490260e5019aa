package utils

import (
	"path"
	"strings"
)

var specialFileLanguages = map[string]string{
	"dockerfile":          "dockerfile",
	"dockerfile.dev":      "dockerfile",
	"dockerfile.prod":     "dockerfile",
	"dockerfile.test":     "dockerfile",
	".dockerfile":         "dockerfile",
	"docker-compose.yml":  "dockercompose",
	"docker-compose.yaml": "dockercompose",
	"makefile":            "makefile",
	"makefile.am":         "makefile",
	"gnumakefile":         "makefile",
	"cmakelists.txt":      "cmake",
	"rakefile":            "ruby",
	"gemfile":             "ruby",
	"podfile":             "ruby",
	"vagrantfile":         "ruby",
	".gitignore":          "ignore",
	".gitattributes":      "git",
	".gitmodules":         "git",
	".dockerignore":       "ignore",
	".npmignore":          "ignore",
	".eslintignore":       "ignore",
	".prettierignore":     "ignore",
	".env":                "dotenv",
	".env.local":          "dotenv",
	".env.development":    "dotenv",
	".env.production":     "dotenv",
	".env.test":           "dotenv",
	".env.example":        "dotenv",
	".editorconfig":       "editorconfig",
	".eslintrc":           "json",
	".eslintrc.js":        "javascript",
	".eslintrc.json":      "json",
	".prettierrc":         "json",
	".prettierrc.js":      "javascript",
	".prettierrc.json":    "json",
	".babelrc":            "json",
	".babelrc.js":         "javascript",
	"package.json":        "json",
	"package-lock.json":   "json",
	"tsconfig.json":       "jsonc",
	"jsconfig.json":       "jsonc",
	"composer.json":       "json",
	"cargo.toml":          "toml",
	"go.mod":              "gomod",
	"go.sum":              "gosum",
	"requirements.txt":    "pip-requirements",
	"pipfile":             "toml",
	"poetry.lock":         "toml",
	"yarn.lock":           "yarnlock",
	"pom.xml":             "xml",
	"build.gradle":        "gradle",
	"settings.gradle":     "gradle",
	"gradlew":             "shellscript",
	"license":             "plaintext",
	"readme":              "markdown",
	"readme.md":           "markdown",
	"changelog":           "markdown",
	"changelog.md":        "markdown",
}

var extensionLanguages = map[string]string{
	"ts": "typescript", "tsx": "typescriptreact", "js": "javascript", "jsx": "javascriptreact",
	"cjs": "javascript", "mjs": "javascript",
	"css": "css", "scss": "scss", "sass": "sass", "less": "less",
	"html": "html", "htm": "html", "xhtml": "html", "xml": "xml", "svg": "xml",
	"json": "json", "jsonc": "jsonc", "json5": "json5", "yaml": "yaml", "yml": "yaml", "toml": "toml",
	"ini": "ini", "cfg": "ini", "conf": "ini", "properties": "properties",
	"md": "markdown", "mdx": "mdx", "markdown": "markdown", "rst": "restructuredtext", "adoc": "asciidoc", "tex": "latex",
	"py": "python", "pyw": "python", "pyx": "python", "pyi": "python",
	"java": "java", "kt": "kotlin", "kts": "kotlin", "groovy": "groovy", "gradle": "gradle", "scala": "scala", "sc": "scala",
	"c": "c", "h": "c", "cpp": "cpp", "cc": "cpp", "cxx": "cpp", "hpp": "cpp", "hh": "cpp", "hxx": "cpp",
	"cs": "csharp", "csx": "csharp",
	"vue": "vue", "svelte": "svelte", "astro": "astro",
	"ejs": "ejs", "hbs": "handlebars", "handlebars": "handlebars", "pug": "pug", "jade": "pug",
	"go": "go", "rs": "rust", "rb": "ruby", "erb": "erb", "php": "php", "swift": "swift", "dart": "dart",
	"lua": "lua", "r": "r", "pl": "perl", "pm": "perl",
	"sh": "shellscript", "bash": "shellscript", "zsh": "shellscript", "fish": "fish",
	"ps1": "powershell", "psm1": "powershell", "bat": "bat", "cmd": "bat",
	"sql": "sql", "mysql": "sql", "pgsql": "sql",
	"dockerfile": "dockerfile",
	"graphql":    "graphql", "gql": "graphql", "proto": "proto", "prisma": "prisma",
	"tf": "terraform", "tfvars": "terraform", "bicep": "bicep",
}

// InferLanguage returns a best-effort code fence language identifier for a file path.
// Well-known file names win over extensions; an unknown extension is returned as is,
// and a file without extension yields an empty identifier.
func InferLanguage(filePath string) string {
	fileName := strings.ToLower(path.Base(ToPosix(filePath)))
	if language, known := specialFileLanguages[fileName]; known {
		return language
	}
	if strings.LastIndex(fileName, ".") <= 0 {
		return ""
	}
	extension := strings.TrimPrefix(path.Ext(fileName), ".")
	if extension == "" {
		return ""
	}
	if language, known := extensionLanguages[extension]; known {
		return language
	}
	return extension
}
