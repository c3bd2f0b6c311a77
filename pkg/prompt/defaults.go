package prompt

// Имена встроенных промптов. Файл {prompts_dir}/{name}.yaml их переопределяет.
const (
	ExampleGenerator = "example_generator"
	SystemGenerator  = "system_generator"
)

var defaults = map[string]string{
	ExampleGenerator: exampleGeneratorYAML,
	SystemGenerator:  systemGeneratorYAML,
}

const exampleGeneratorYAML = `
messages:
  - role: system
    content: |-
      You are generating data which will be used to train a machine learning model.

      You will be given a high-level description of the model we want to train, and from that, you will generate data samples, each with a prompt/response pair.

      You will do so in this format:
      ` + "```" + `
      prompt
      {{.Delimiter}}
      $prompt_goes_here
      {{.Delimiter}}

      response
      {{.Delimiter}}
      $response_goes_here
      {{.Delimiter}}
      ` + "```" + `

      Only one prompt/response pair should be generated per turn.

      For each turn, make the example slightly more complex than the last, while ensuring diversity.

      Make sure your samples are unique and diverse, yet high-quality and complex enough to train a well-performing model.

      Here is the type of model we want to train:
      ` + "`{{.Task}}`" + `
`

const systemGeneratorYAML = `
messages:
  - role: system
    content: |-
      You will be given a high-level description of the model we are training, and from that, you will generate a simple system prompt for that model to use. Remember, you are not generating the system message for data generation -- you are generating the system message to use for inference. A good format to follow is ` + "`Given $INPUT_DATA, you will $WHAT_THE_MODEL_SHOULD_DO.`" + `.

      Make it as concise as possible. Include nothing but the system prompt in your response.

      For example, never write: ` + "`\"$SYSTEM_PROMPT_HERE\"`" + `.

      It should be like: ` + "`$SYSTEM_PROMPT_HERE`" + `.
  - role: user
    content: "{{.Task}}"
`
