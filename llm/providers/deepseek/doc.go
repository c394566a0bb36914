/*
包 deepseek 把 DeepSeek 接入为 LLM Provider。DeepSeek 走 OpenAI
兼容协议，所以这里只是一层薄适配：嵌入 openaicompat.Provider 复用
请求构造、SSE 解析与错误翻译，本包只补上接入差异。

接入差异：

  - BaseURL 默认 providers.DeepSeekDefaultBaseURL
  - 兜底模型 providers.DeepSeekDefaultModel
  - 补全端点 /chat/completions
  - deepseek-reasoner 拒绝采样参数，RequestHook 在发送前剥离
*/
package deepseek
