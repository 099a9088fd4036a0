// Copyright (c) 2026 Steve Taranto <staranto@gmail.com>.
// SPDX-License-Identifier: Apache-2.0

package command

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/urfave/cli/v3"

	"github.com/staranto/assetctl/internal/meta"
)

const bashCompletionScript = `# bash completion for assetctl
# Fallback if bash-completion is not installed
if ! declare -F _get_comp_words_by_ref >/dev/null 2>&1; then
  _get_comp_words_by_ref() {
    cur=${COMP_WORDS[COMP_CWORD]}
    prev=${COMP_WORDS[COMP_CWORD-1]}
  }
fi

_assetctl()
{
    local cur prev cmd
    COMPREPLY=()
    _get_comp_words_by_ref -n : cur prev

    if [[ ${COMP_CWORD} -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "build groups watch cache completion --help --version" -- "$cur") )
        return 0
    fi

    cmd=${COMP_WORDS[1]}
    local common="--attrs -a --color -c --filter -f --output -o --sort -s --titles -t --schema --tldr"
    local engine="--model --pre --post --minimize -m --ignore-missing --tolerant --fingerprint --parallelism --http-timeout --http-retries"
    local store="--store --cache-size --cache-dir --validate --s3-bucket --s3-prefix --s3-region --s3-profile --s3-endpoint"

    # An optional ContextDir is the first non-flag after the subcommand.
    local have_contextdir=0
    local idx=2
    while [[ $idx -lt ${#COMP_WORDS[@]} ]]; do
        local w=${COMP_WORDS[$idx]}
        if [[ $w != -* && $idx -ne $COMP_CWORD ]]; then
            have_contextdir=1
            break
        fi
        ((idx++))
    done

    case "$cmd" in
        build)
            local opts="$common $engine $store --groups -g --type --dest -d"
            ;;
        groups)
            local opts="$common $engine $store --groups -g --type"
            ;;
        watch)
            local opts="$common $engine $store --groups -g --type --dest -d --interval -i --for --stats"
            ;;
        cache)
            if [[ ${COMP_CWORD} -eq 2 ]]; then
                COMPREPLY=( $(compgen -W "ls purge" -- "$cur") )
                return 0
            fi
            COMPREPLY=( $(compgen -W "$common $store --older-than" -- "$cur") )
            return 0
            ;;
        completion)
            COMPREPLY=( $(compgen -W "bash zsh" -- "$cur") )
            return 0
            ;;
        *)
            local opts="$common"
            ;;
    esac

    case "$prev" in
        --output|-o)
            COMPREPLY=( $(compgen -W "text json raw yaml" -- "$cur") )
            return 0
            ;;
        --type)
            COMPREPLY=( $(compgen -W "css js any" -- "$cur") )
            return 0
            ;;
        --store)
            COMPREPLY=( $(compgen -W "memory lru disk s3" -- "$cur") )
            return 0
            ;;
        --fingerprint)
            COMPREPLY=( $(compgen -W "sha256 sha512 blake2b modtime" -- "$cur") )
            return 0
            ;;
        --model|--cache-dir|--dest|-d)
            COMPREPLY=( $(compgen -f -- "$cur") )
            return 0
            ;;
    esac

    if [[ "$cur" == -* || $have_contextdir -eq 1 ]]; then
        COMPREPLY=( $(compgen -W "$opts" -- "$cur") )
        return 0
    fi

    COMPREPLY=( $(compgen -o dirnames -- "$cur") )
    return 0
}

complete -F _assetctl assetctl
`

const zshCompletionScript = `#compdef assetctl

_assetctl() {
  local -a cmds
  cmds=(
    'build:process groups into optimized style sheets and scripts'
    'groups:list groups and the resources they resolve to'
    'watch:rebuild groups when their resources change'
    'cache:inspect and purge the output cache'
    'completion:generate shell completion script'
  )

  local -a common
  common=(
  '(-a --attrs)'{-a,--attrs}'[report columns]:attrs'
  '(-c --color)'{-c,--color}'[enable colored text]'
  '(-f --filter)'{-f,--filter}'[filters to apply]:filters'
  '(-o --output)'{-o,--output}'[output format]:format:(text json raw yaml)'
  '(-s --sort)'{-s,--sort}'[sort columns]:attrs'
  '(-t --titles)'{-t,--titles}'[show titles]'
  '--schema[dump schema]'
  '--tldr[show tldr page]'
  )

  local -a store
  store=(
  '--store[cache store]:store:(memory lru disk s3)'
  '--cache-size[lru entries]:size'
  '--cache-dir[disk store directory]:dir:_directories'
  '--validate[re-fingerprint cached inputs]'
  '--s3-bucket[s3 bucket]:bucket'
  '--s3-prefix[s3 key prefix]:prefix'
  '--s3-region[s3 region]:region'
  '--s3-profile[AWS profile]:profile'
  '--s3-endpoint[s3 endpoint]:url'
  )

  local -a engine
  engine=(
  '--model[group model file]:model:_files'
  '--pre[pre processors]:names'
  '--post[post processors]:names'
  '(-m --minimize)'{-m,--minimize}'[run minimizing processors]'
  '--ignore-missing[skip missing resources]'
  '--tolerant[keep going when a processor fails]'
  '--fingerprint[fingerprint algorithm]:algorithm:(sha256 sha512 blake2b modtime)'
  '--parallelism[concurrent resource reads]:n'
  '--http-timeout[http resource timeout]:duration'
  '--http-retries[http resource retries]:n'
  '(-g --groups)'{-g,--groups}'[groups]:groups'
  '--type[resource type]:type:(css js any)'
  )

  if (( CURRENT == 2 )); then
    _describe -t commands 'assetctl commands' cmds
    return
  fi

  local curcontext="$curcontext" state line
  case $words[2] in
    build)
      _arguments -C $common $engine $store \
        '(-d --dest)'{-d,--dest}'[output directory]:dir:_directories' \
        '::ContextDir:_directories'
      ;;
    groups)
      _arguments -C $common $engine $store '::ContextDir:_directories'
      ;;
    watch)
      _arguments -C $common $engine $store \
        '(-d --dest)'{-d,--dest}'[output directory]:dir:_directories' \
        '(-i --interval)'{-i,--interval}'[scan interval]:duration' \
        '--for[stop after]:duration' \
        '--stats[print metrics on exit]' \
        '::ContextDir:_directories'
      ;;
    cache)
      if (( CURRENT == 3 )); then
        _values 'cache commands' ls purge
        return
      fi
      _arguments -C $common $store '--older-than[only older entries]:duration'
      ;;
    completion)
      _arguments '1: :((bash zsh))'
      ;;
    *)
      _arguments -C $common '*:directory:_directories'
      ;;
  esac
}

# If this file is sourced directly (not autoloaded via fpath), ensure compsys is initialized and register the completion
if ! typeset -f compdef >/dev/null 2>&1; then
  autoload -Uz compinit && compinit -i
fi
compdef _assetctl assetctl
`

func CompletionCommandAction(ctx context.Context, cmd *cli.Command) error {
	shell := ""
	if args := cmd.Args().Slice(); len(args) > 0 {
		shell = args[0]
	}
	if shell == "" {
		// Fall back to the login shell.
		switch sh := os.Getenv("SHELL"); {
		case strings.HasSuffix(sh, "zsh"):
			shell = "zsh"
		case strings.HasSuffix(sh, "bash"):
			shell = "bash"
		}
	}

	w := writer(cmd)
	switch shell {
	case "bash":
		fmt.Fprint(w, bashCompletionScript)
	case "zsh":
		fmt.Fprint(w, zshCompletionScript)
	default:
		return fmt.Errorf("unsupported shell %q, usage: assetctl completion [bash|zsh]", shell)
	}
	return nil
}

func CompletionCommandBuilder(m meta.Meta) *cli.Command {
	return &cli.Command{
		Name:      "completion",
		Usage:     "generate shell completion script",
		UsageText: "assetctl completion [bash|zsh]",
		Metadata: map[string]any{
			"meta": m,
		},
		Action: CompletionCommandAction,
	}
}
